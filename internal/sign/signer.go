package sign

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"

	"video-parser/pkg/models"
)

// DefaultFunction is the global the signature script must define
const DefaultFunction = "sign"

const defaultSignTimeout = 2 * time.Second

var errEmptySignature = errors.New("signature script returned an empty token")

// ScriptSigner runs a JavaScript signature script. The script is compiled once;
// every call runs on a runtime taken from a pool, so Sign is safe for concurrent use.
type ScriptSigner struct {
	path     string
	function string
	program  *goja.Program
	timeout  time.Duration
	runtimes sync.Pool
}

// NewScriptSigner compiles the script at path and checks that it defines function
func NewScriptSigner(path, function string) (*ScriptSigner, error) {
	if function == "" {
		function = DefaultFunction
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature script: %w", err)
	}

	program, err := goja.Compile(path, string(src), false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile signature script: %w", err)
	}

	s := &ScriptSigner{
		path:     path,
		function: function,
		program:  program,
		timeout:  defaultSignTimeout,
	}

	// Probe once so a broken script disables signing at startup instead of per request
	vm, _, err := s.newRuntime()
	if err != nil {
		return nil, err
	}
	s.release(vm)

	return s, nil
}

// Path returns the script location
func (s *ScriptSigner) Path() string {
	return s.path
}

func (s *ScriptSigner) newRuntime() (*goja.Runtime, goja.Callable, error) {
	vm := goja.New()
	if _, err := vm.RunProgram(s.program); err != nil {
		return nil, nil, fmt.Errorf("failed to run signature script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get(s.function))
	if !ok {
		return nil, nil, fmt.Errorf("signature script does not define function %q", s.function)
	}
	return vm, fn, nil
}

func (s *ScriptSigner) acquire() (*goja.Runtime, goja.Callable, error) {
	if v := s.runtimes.Get(); v != nil {
		vm := v.(*goja.Runtime)
		if fn, ok := goja.AssertFunction(vm.Get(s.function)); ok {
			return vm, fn, nil
		}
	}
	return s.newRuntime()
}

// Sign computes the signature token for an encoded query string
func (s *ScriptSigner) Sign(query, userAgent string) (string, error) {
	vm, fn, err := s.acquire()
	if err != nil {
		return "", err
	}

	timer := time.AfterFunc(s.timeout, func() {
		vm.Interrupt("signature timeout")
	})
	result, err := fn(goja.Undefined(), vm.ToValue(query), vm.ToValue(userAgent))
	timer.Stop()

	if err != nil {
		// an interrupted runtime is not reused
		return "", fmt.Errorf("signature script failed: %w", err)
	}

	var token string
	if result != nil && !goja.IsUndefined(result) && !goja.IsNull(result) {
		token = result.String()
	}
	s.release(vm)

	if token == "" {
		return "", errEmptySignature
	}
	return token, nil
}

// release returns a runtime to the pool. The timeout may fire after the call
// returned, so a pending interrupt is cleared first.
func (s *ScriptSigner) release(vm *goja.Runtime) {
	vm.ClearInterrupt()
	s.runtimes.Put(vm)
}

// Disabled is the signer used when no script is available.
// Every call fails, which makes the API strategy fall back.
type Disabled struct {
	Reason string
}

func (d Disabled) Sign(query, userAgent string) (string, error) {
	if d.Reason == "" {
		return "", models.ErrSignerUnavailable
	}
	return "", fmt.Errorf("%w: %s", models.ErrSignerUnavailable, d.Reason)
}
