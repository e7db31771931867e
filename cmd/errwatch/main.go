// Command errwatch принимает события ошибок и производительности, ведёт
// статистику, оценивает пороги и рассылает алерты.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Kargones/errwatch/internal/constants"
	"github.com/Kargones/errwatch/internal/pkg/apperrors"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run выполняет команду и возвращает код завершения. os.Exit вызывается
// только в main, чтобы отработали все defer (остановка трейсинга, снапшот).
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "errwatch: %v\n", err)
		return exitCode(err)
	}
	return constants.ExitOK
}

// exitError задаёт код завершения для ошибки.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch apperrors.CodeOf(err) {
	case apperrors.ErrConfigLoad, apperrors.ErrConfigValidate:
		return constants.ExitConfig
	case apperrors.ErrServerStart:
		return constants.ExitInit
	}
	return constants.ExitRuntime
}
