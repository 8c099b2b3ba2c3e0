package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRepo_GetSetReset(t *testing.T) {
	r := NewRepo(8, time.Minute)

	it := r.Get(1)
	assert.Equal(t, StateIdle, it.State)
	assert.NotNil(t, it.Payload)

	r.Set(1, StateAwaitHoldBrand, Payload{KeyID: "CAP-100", KeyReason: "EOL"})
	it = r.Get(1)
	assert.Equal(t, StateAwaitHoldBrand, it.State)
	id, ok := GetString(it.Payload, KeyID)
	assert.True(t, ok)
	assert.Equal(t, "CAP-100", id)
	assert.Equal(t, StateIdle, r.Get(2).State)

	r.Reset(1)
	assert.Equal(t, StateIdle, r.Get(1).State)
}

func TestRepo_Expires(t *testing.T) {
	r := NewRepo(8, 20*time.Millisecond)
	r.Set(1, StateAwaitExpected, nil)
	assert.Eventually(t, func() bool { return r.Get(1).State == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestGetString(t *testing.T) {
	p := Payload{"n": 3, "s": "x"}
	_, ok := GetString(p, "n")
	assert.False(t, ok)
	_, ok = GetString(p, "missing")
	assert.False(t, ok)
	s, ok := GetString(p, "s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)
}
