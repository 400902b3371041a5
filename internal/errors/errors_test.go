package errors

import (
	stderrors "errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	err := Wrap(ConfigInvalid("FIT_METHOD is unknown"), "failed to load fit configuration")

	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.Equal(t, "failed to load fit configuration: FIT_METHOD is unknown", err.Error())
}

func TestWrapPlainError(t *testing.T) {
	err := Wrapf(fs.ErrNotExist, "reading %s", "pha_obs1.fits")

	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.True(t, stderrors.Is(err, fs.ErrNotExist))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeFitFailed, stderrors.New("simplex did not converge"))

	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeFitFailed, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestIOError(t *testing.T) {
	err := IOError("bkg_obs1.fits", fs.ErrPermission)

	assert.Equal(t, CodeIOError, err.Code)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Contains(t, err.Error(), "bkg_obs1.fits")
}
