package livekit

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	config, err := NewLiveKitConfig("http://localhost:7880", "", "devkey", "devsecret", "", "callcenter-agent")
	require.NoError(t, err)

	rm, err := NewRoomManager(config)
	require.NoError(t, err)

	token, err := rm.GenerateToken("call_abcd1234", "callcenter-agent", 2*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Equal(t, "callcenter-agent", claims["sub"])

	video, ok := claims["video"].(map[string]interface{})
	require.True(t, ok, "token must carry a video grant")
	assert.Equal(t, "call_abcd1234", video["room"])
	assert.Equal(t, true, video["roomJoin"])
}
