package errors_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	mirrerrs "github.com/molehill/hnmirror/internal/errors"
)

func TestEConstructor(t *testing.T) {
	got := mirrerrs.E(
		"something went wrong",
		mirrerrs.Detail{Field: "handle", Error: "was bad"},
		http.StatusBadRequest,
	)
	want := &mirrerrs.Error{
		Err: errors.New("something went wrong"),
		Details: []mirrerrs.Detail{
			{Field: "handle", Error: "was bad"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestRoundTripJSON(t *testing.T) {
	orig := mirrerrs.E("boom", http.StatusConflict)

	b, err := orig.MarshalJSON()
	assert.NoError(t, err)

	var back mirrerrs.Error
	assert.NoError(t, back.UnmarshalJSON(b))
	assert.Equal(t, http.StatusConflict, back.Status)
	assert.Equal(t, "boom", back.Err.Error())
}
