// Package classify normalizes backend-native errors into a numeric code,
// a message and a fatal verdict.
//
// Each backend registers an Adapter under its driver kind. The adapter
// only knows how to pull the native code out of its driver's error type
// and which normalized codes mean the session is unusable.
package classify

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// CodeUnclassified is assigned when the native error carries no digits.
const CodeUnclassified = 13

// Classified is the normalized view of a backend error.
type Classified struct {
	Code       int
	Message    string
	Fatal      bool
	Privileged bool
}

// Adapter describes one backend's error model.
type Adapter struct {
	Kind string

	// Extract returns the native code and message carried by err.
	// ok is false when err is not one of the backend's error types.
	Extract func(err error) (native, message string, ok bool)

	// FatalCodes lists normalized codes that mean the session is gone.
	FatalCodes []int

	// PrivilegedCodes lists codes meaning a privileged connection is
	// required. These stop the agent.
	PrivilegedCodes []int
}

var (
	mu       sync.RWMutex
	adapters = make(map[string]Adapter)
)

// Register installs an adapter, replacing any previous one for the kind.
func Register(a Adapter) {
	mu.Lock()
	defer mu.Unlock()
	adapters[a.Kind] = a
}

// Kinds returns the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(adapters))
	for k := range adapters {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Classifier classifies errors for a single backend kind.
type Classifier struct {
	adapter    Adapter
	fatal      map[int]struct{}
	privileged map[int]struct{}
}

// For returns the classifier registered for kind.
func For(kind string) (*Classifier, error) {
	mu.RLock()
	a, ok := adapters[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no error classifier registered for backend %q", kind)
	}
	return New(a), nil
}

// New builds a classifier from an adapter without registering it.
func New(a Adapter) *Classifier {
	c := &Classifier{
		adapter:    a,
		fatal:      make(map[int]struct{}, len(a.FatalCodes)),
		privileged: make(map[int]struct{}, len(a.PrivilegedCodes)),
	}
	for _, code := range a.FatalCodes {
		c.fatal[code] = struct{}{}
	}
	for _, code := range a.PrivilegedCodes {
		c.privileged[code] = struct{}{}
	}
	return c
}

// Kind returns the backend kind this classifier serves.
func (c *Classifier) Kind() string { return c.adapter.Kind }

// Classify maps err to its normalized triple.
func (c *Classifier) Classify(err error) Classified {
	if err == nil {
		return Classified{}
	}

	native, msg := "", err.Error()
	if c.adapter.Extract != nil {
		if n, m, ok := c.adapter.Extract(err); ok {
			native = n
			if m != "" {
				msg = m
			}
		}
	}

	code := NormalizeCode(native)
	_, privileged := c.privileged[code]
	_, fatal := c.fatal[code]

	return Classified{
		Code:       code,
		Message:    Flatten(msg),
		Fatal:      fatal || privileged,
		Privileged: privileged,
	}
}

// Wrap classifies err and returns it as an *Error.
func (c *Classifier) Wrap(err error) *Error {
	return &Error{Kind: c.adapter.Kind, Classified: c.Classify(err), Err: err}
}

// NormalizeCode turns a native code into an integer. Purely numeric codes
// are used as is; otherwise every digit is kept in order ("ORA-03113" is
// 3113, SQLSTATE "57P01" is 5701). Codes without digits, or whose digits
// are all zero ("XX000"), are unclassified since 0 reports success.
func NormalizeCode(native string) int {
	native = strings.TrimSpace(native)
	if native == "" {
		return CodeUnclassified
	}
	if n, err := strconv.Atoi(native); err == nil {
		if n == 0 {
			return CodeUnclassified
		}
		return n
	}

	var b strings.Builder
	for _, r := range native {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return CodeUnclassified
	}
	n, err := strconv.Atoi(b.String())
	if err != nil || n == 0 {
		return CodeUnclassified
	}
	return n
}

// Flatten trims a message and puts it on a single line.
func Flatten(msg string) string {
	msg = strings.TrimSpace(msg)
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(msg)
}

// Error is a backend error after classification.
type Error struct {
	Kind string
	Classified
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
