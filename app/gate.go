package app

import (
	stderrors "errors"
	"fmt"
)

// ErrGateFailed is returned by validation when the recomputed RMSE is above
// the threshold. It is not a malfunction: the CLI maps it to exit status 1
// without an error trace.
var ErrGateFailed = stderrors.New("quality gate failed")

// PassesGate reports whether rmse is within threshold. The boundary passes.
func PassesGate(rmse, threshold float64) bool {
	return rmse <= threshold
}

func gateError(rmse, threshold float64) error {
	return fmt.Errorf("%w: RMSE %.4f exceeds threshold %g", ErrGateFailed, rmse, threshold)
}

// ExitCode maps a stage outcome to the process status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
