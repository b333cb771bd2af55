package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    UserID
		wantErr bool
	}{
		{"plain identifier", "user-1", "user-1", false},
		{"uuid shape passes too", "550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000", false},
		{"surrounding space trimmed", "  user-1  ", "user-1", false},
		{"empty", "", "", true},
		{"inner whitespace", "user 1", "", true},
		{"over length bound", string(make([]byte, MaxIDLength+1)), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewUserID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, IsValidation(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestNewCampaignID(t *testing.T) {
	valid := []string{"go-basics", "sql_101", "a1"}
	for _, s := range valid {
		id, err := NewCampaignID(s)
		assert.NoError(t, err, s)
		assert.Equal(t, CampaignID(s), id)
	}

	invalid := []string{"", "-starts-with-dash", "has space", "UPPER CASE SPACED"}
	for _, s := range invalid {
		_, err := NewCampaignID(s)
		assert.Error(t, err, s)
	}
}

func TestModuleIDIsValid(t *testing.T) {
	assert.True(t, ModuleID("m1").IsValid())
	assert.False(t, ModuleID("").IsValid())
	assert.False(t, ModuleID("m 1").IsValid())
}

func TestXPAddClampsAtBounds(t *testing.T) {
	assert.Equal(t, XP(150), XP(100).Add(50))
	assert.Equal(t, MinXP, XP(10).Add(-50), "XP never goes negative")
	assert.Equal(t, MaxXP, MaxXP.Add(1))
}

func TestPercentClamp(t *testing.T) {
	assert.Equal(t, Percent(0), Percent(-3).Clamp())
	assert.Equal(t, Percent(44), Percent(44).Clamp())
	assert.Equal(t, Percent(100), Percent(101).Clamp())
}

func TestLevelIsValid(t *testing.T) {
	assert.False(t, Level(0).IsValid())
	assert.True(t, Level(1).IsValid())
}
