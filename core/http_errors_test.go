package core_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/propfin/core"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("http error passes through wrapping", func(t *testing.T) {
		t.Parallel()
		he := core.Resolve(fmt.Errorf("handler: %w", core.ErrNotFound))
		assert.Equal(t, http.StatusNotFound, he.Status)
		assert.Equal(t, "not_found", he.Code)
	})

	t.Run("validation error carries field details", func(t *testing.T) {
		t.Parallel()
		ve := core.ValidationError{}
		ve.Add("plan", "is required")
		he := core.Resolve(ve)
		assert.Equal(t, http.StatusBadRequest, he.Status)
		assert.Equal(t, map[string]any{"plan": []string{"is required"}}, he.Details)
	})

	t.Run("mappers run in order", func(t *testing.T) {
		t.Parallel()
		target := errors.New("target")
		first := func(err error) (core.HTTPError, bool) {
			return core.ErrForbidden, errors.Is(err, target)
		}
		second := func(error) (core.HTTPError, bool) { return core.ErrConflict, true }
		assert.Equal(t, http.StatusForbidden, core.Resolve(target, first, second).Status)
		assert.Equal(t, http.StatusConflict, core.Resolve(errors.New("other"), first, second).Status)
	})

	t.Run("unknown errors are internal", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, core.ErrInternalServerError, core.Resolve(errors.New("boom")))
	})
}

func TestHTTPErrorCopies(t *testing.T) {
	t.Parallel()

	base := core.ErrUnprocessableEntity
	withDetails := base.WithDetails(map[string]any{"current": 40})
	more := withDetails.WithDetails(map[string]any{"limit": 5})

	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]any{"current": 40}, withDetails.Details)
	assert.Equal(t, map[string]any{"current": 40, "limit": 5}, more.Details)
	assert.Equal(t, "request cannot be applied", base.Error())
	assert.Equal(t, "custom", base.WithMessage("custom").Error())
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	core.WriteError(rec, core.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"unauthorized","message":"authentication required"}}`, rec.Body.String())
}
