package presell

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCampaignStatusTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, StatusPending.Terminal())
	require.True(t, StatusSuccess.Terminal())
	require.True(t, StatusScreenshotMode.Terminal())
	require.True(t, StatusFailed.Terminal())
}

func TestProcessingModeValid(t *testing.T) {
	t.Parallel()

	require.True(t, ModeAutomatic.Valid())
	require.True(t, ModeCloneOnly.Valid())
	require.True(t, ModeScreenshotOnly.Valid())
	require.False(t, ProcessingMode("manual").Valid())
	require.False(t, ProcessingMode("").Valid())
}

func TestScreenshotIndexMarshalsWithStringKeys(t *testing.T) {
	t.Parallel()

	artifact := Artifact{ScreenshotIndex: map[int]string{
		1024: "campaign-a/screenshot_1024.jpeg",
		360:  "campaign-a/screenshot_360.jpeg",
	}}
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.JSONEq(t, `{"screenshot_index":{
		"1024":"campaign-a/screenshot_1024.jpeg",
		"360":"campaign-a/screenshot_360.jpeg"
	}}`, string(data))

	var decoded Artifact
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, artifact.ScreenshotIndex, decoded.ScreenshotIndex)
}
