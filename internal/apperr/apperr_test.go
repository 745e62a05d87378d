package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{KindInternal, http.StatusInternalServerError},
		{KindNotImplemented, http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestMarshalJSON_PublicCarriesMessageAndParams(t *testing.T) {
	b, err := json.Marshal(BadRequest("Invalid username: $1", "bad name"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Invalid username: $1","parameters":["bad name"]}`, string(b))

	b, err = json.Marshal(Forbidden("Forbidden"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Forbidden","parameters":[]}`, string(b))
}

func TestMarshalJSON_InternalIsStripped(t *testing.T) {
	b, err := json.Marshal(Internal("size mismatch 1000 vs 900", errors.New("detail")))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	b, err = json.Marshal(NotImplemented("later"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestError_StringSubstitutesParams(t *testing.T) {
	e := BadRequest("field $1 must be shorter than $2", "name", "50")
	assert.Equal(t, "bad_request: field name must be shorter than 50", e.Error())

	wrapped := Internal("db failed", errors.New("conn reset"))
	assert.Equal(t, "internal_server_error: db failed: conn reset", wrapped.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrap: %w", Conflict("dup"))))

	joined := errors.Join(Internal("compensation failed", nil), Conflict("dup"))
	assert.Equal(t, KindInternal, KindOf(joined))
}

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Forbidden("Forbidden"))
	assert.True(t, errors.Is(err, Forbidden("")))
	assert.False(t, errors.Is(err, NotFound("")))
}

func TestAs_ForeignErrorBecomesInternal(t *testing.T) {
	cause := errors.New("boom")
	e := As(cause)
	require.NotNil(t, e)
	assert.Equal(t, KindInternal, e.Kind)
	assert.ErrorIs(t, e, cause)
	assert.Nil(t, As(nil))
}
