package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type registerPayload struct {
	Token      string `json:"token" validate:"required,max=4096"`
	DeviceInfo string `json:"device_info" validate:"max=255"`
}

type triggerPayload struct {
	Classes []string `json:"classes" validate:"required,min=1,dive,kelas"`
}

type settingsPayload struct {
	Start *string `json:"dnd_start_time" validate:"omitempty,clock"`
}

func TestValidateStructSuccess(t *testing.T) {
	require.NoError(t, ValidateStruct(registerPayload{Token: "fcm-token", DeviceInfo: "Pixel 7"}))
}

func TestValidateStructFailuresUseJSONNames(t *testing.T) {
	err := ValidateStruct(registerPayload{})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 1)
	require.Equal(t, "token", vErrs[0].Field)
	require.Equal(t, "required", vErrs[0].Tag)
}

func TestKelasRuleRejectsBlankLabels(t *testing.T) {
	require.NoError(t, ValidateStruct(triggerPayload{Classes: []string{"X RPL 1", " XI TKJ 2 "}}))
	require.Error(t, ValidateStruct(triggerPayload{Classes: []string{"X RPL 1", "   "}}))
	require.Error(t, ValidateStruct(triggerPayload{}))
}

func TestClockRule(t *testing.T) {
	valid := "22:30"
	invalid := "24:00"
	require.NoError(t, ValidateStruct(settingsPayload{Start: &valid}))
	require.NoError(t, ValidateStruct(settingsPayload{}))
	require.Error(t, ValidateStruct(settingsPayload{Start: &invalid}))

	require.True(t, IsClock("07:05"))
	require.False(t, IsClock("7:05"))
}

func TestValidationErrorMessages(t *testing.T) {
	err := ValidateStruct(registerPayload{Token: "t", DeviceInfo: string(make([]byte, 300))})
	require.EqualError(t, err, "device info must be at most 255 characters")

	require.Equal(t, "classes[0] must not be blank", ValidationError{Field: "classes[0]", Tag: "kelas"}.Message())
	require.Equal(t, "category must be one of: deadline, schedule", ValidationError{Field: "category", Tag: "oneof", Param: "deadline schedule"}.Message())
	require.Equal(t, "endpoint failed validation: startswith=https", ValidationError{Field: "endpoint", Tag: "startswith", Param: "https"}.Message())
	require.Equal(t, "invalid request payload", ValidationErrors{}.Error())
}
