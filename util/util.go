package util

import "golang.org/x/xerrors"

// WrapErr prefixes err with the step that produced it. A nil err stays nil so
// callers can wrap the result of a deferred close unconditionally.
func WrapErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	if msg == "" {
		return err
	}
	return xerrors.Errorf("%s: %w", msg, err)
}
