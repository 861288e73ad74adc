package protocol

import (
	"encoding/json"
	"testing"

	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeekType(t *testing.T) {
	typ, err := PeekType([]byte(`{"type":"call-user","signalPayload":{"sdp":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, CallUser, typ)

	_, err = PeekType([]byte(`{"type":`))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = PeekType([]byte(`{"type":7}`))
	require.ErrorIs(t, err, ErrMalformed)

	typ, err = PeekType([]byte(`{"type":"join-room"}`))
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, EventType("join-room"), typ)
}

func TestDecodeRequiredFields(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		err   error
	}{
		{"call-user", `{"type":"call-user","targetIdentity":"b","signalPayload":{},"mediaKind":"audio"}`, nil},
		{"call-user without target", `{"type":"call-user","signalPayload":{},"mediaKind":"audio"}`, ErrMalformed},
		{"call-user bad kind", `{"type":"call-user","targetIdentity":"b","signalPayload":{},"mediaKind":"screen"}`, ErrMalformed},
		{"answer without payload", `{"type":"answer-call","targetIdentity":"a"}`, ErrMalformed},
		{"reject", `{"type":"reject-call","targetIdentity":"a"}`, nil},
		{"end without target", `{"type":"end-call"}`, ErrMalformed},
		{"candidate", `{"type":"ice-candidate","targetIdentity":"a","candidate":{"candidate":"c"}}`, nil},
		{"candidate without peer", `{"type":"ice-candidate","candidate":{}}`, ErrMalformed},
		{"lookup", `{"type":"lookup-user","userId":"bob"}`, nil},
		{"lookup without user", `{"type":"lookup-user"}`, ErrMalformed},
		{"ping", `{"type":"ping"}`, nil},
		{"not an object", `[1,2]`, ErrMalformed},
		{"field of wrong type", `{"type":"end-call","targetIdentity":12}`, ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.frame))
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSignalPayloadIsOpaque(t *testing.T) {
	payload := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1","extra":[1,{"k":null}]}`)
	frame, err := NewIncomingCall("caller", payload, domain.MediaAudioVideo).Encode()
	require.NoError(t, err)

	m, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, IncomingCall, m.Type)
	assert.Equal(t, domain.ConnectionID("caller"), m.CallerIdentity)
	assert.JSONEq(t, string(payload), string(m.SignalPayload))
}

func TestBuildersOmitUnusedFields(t *testing.T) {
	frame, err := NewEndCall("peer").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"end-call","targetIdentity":"peer"}`, string(frame))

	frame, err = NewUserIdentity("bob", "").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-identity","userId":"bob"}`, string(frame))
}
