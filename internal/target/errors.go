package target

import "github.com/xjet/xjet/errors"

func noRunnersErr() error {
	return errors.NewKind(errors.KindUserConfig, "target: no runners configured")
}

func unknownRunnerErr(id string) error {
	return errors.NewKind(errors.KindUserConfig, "target: unknown runner id "+id)
}
