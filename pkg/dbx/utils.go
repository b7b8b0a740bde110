package dbx

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/marcodd23/go-subatomic/pkg/logx"
)

// GenerateRandomInt64Id generates a random 64-bit ID.
//
// This function generates a random, non-zero 64-bit integer used to identify atomic blocks in logs.
// It uses the crypto/rand package and loops until the result is non-zero, so that zero can keep meaning "no block".
//
// Returns:
//   - int64: A random, non-zero 64-bit integer.
func GenerateRandomInt64Id() int64 {
	var idNum uint64

	for idNum == 0 {
		err := binary.Read(rand.Reader, binary.BigEndian, &idNum)
		if err != nil {
			logx.GetLogger().LogError(context.TODO(), "error generating 64-bit random ID", err)
			continue
		}

		idNum %= uint64(math.MaxInt64)
	}

	return int64(idNum)
}

// newSavepointPrefix returns the per-connection prefix of savepoint names: "s" plus 8 hex digits.
func newSavepointPrefix() string {
	return "s" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// savepointName builds a savepoint identifier that is safe to embed unquoted in SQL.
func savepointName(prefix string, counter int) string {
	return fmt.Sprintf("%s_x%d", prefix, counter)
}

// FuncName returns the symbol name of fn, or "<nil>".
func FuncName(fn any) string {
	if fn == nil {
		return "<nil>"
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}

	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}

	return "<unknown>"
}
