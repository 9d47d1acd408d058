package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(tempF float64, pop *float64, dewC *float64) Period {
	return Period{TemperatureF: tempF, PoP: pop, DewpointC: dewC}
}

func ptr(v float64) *float64 { return &v }

func TestRainy(t *testing.T) {
	rainy := Rainy(DefaultThresholds())

	assert.False(t, rainy(sample(70, ptr(33), nil)), "threshold is exclusive")
	assert.True(t, rainy(sample(70, ptr(34), nil)))
	assert.False(t, rainy(sample(70, nil, nil)), "absent PoP means dry")
}

func TestWarm(t *testing.T) {
	warm := Warm(DefaultThresholds())

	assert.True(t, warm(sample(68, nil, nil)), "threshold is inclusive")
	assert.False(t, warm(sample(67.9, nil, nil)))
}

func TestCool(t *testing.T) {
	cool := Cool(DefaultThresholds())

	assert.True(t, cool(sample(72, nil, ptr(15.5))))
	assert.False(t, cool(sample(72.1, nil, ptr(15.5))))
	assert.False(t, cool(sample(72, nil, ptr(16))), "too humid")
	assert.False(t, cool(sample(72, nil, nil)), "unknown dewpoint is never cool")
}

func TestComfortable(t *testing.T) {
	comfy := Comfortable(DefaultThresholds())

	assert.True(t, comfy(sample(68, nil, nil)))
	assert.True(t, comfy(sample(72, nil, nil)))
	assert.False(t, comfy(sample(67, nil, nil)))
	assert.False(t, comfy(sample(73, nil, nil)))
}

func TestClassifierForKind(t *testing.T) {
	th := DefaultThresholds()

	for _, kind := range []Kind{KindRain, KindWarm, KindCool, KindComfort} {
		_, ok := ClassifierForKind(kind, th)
		assert.True(t, ok, "kind %s", kind)
	}

	c, ok := ClassifierForKind(KindRain, th)
	require.True(t, ok)
	require.NotNil(t, c.SameBlock)
	assert.True(t, c.SameBlock(Period{ShortForecast: "Rain"}, Period{ShortForecast: "Rain"}))
	assert.False(t, c.SameBlock(Period{ShortForecast: "Rain"}, Period{ShortForecast: "Thunderstorms"}))

	for _, kind := range []Kind{KindBest, KindAlerts, Kind("bogus")} {
		_, ok := ClassifierForKind(kind, th)
		assert.False(t, ok, "kind %s", kind)
	}
}

func TestWindMPH(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"10 mph", 10},
		{"5 to 10 mph", 5},
		{"", 0},
		{"calm", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Period{WindSpeed: tc.in}.WindMPH(), "wind %q", tc.in)
	}
}

func TestGridpointRoundTrip(t *testing.T) {
	gp, err := ParseGridpoint("MTR/93,86")
	require.NoError(t, err)
	assert.Equal(t, Gridpoint{Office: "MTR", GridX: 93, GridY: 86}, gp)
	assert.Equal(t, "MTR/93,86", gp.String())

	for _, bad := range []string{"", "MTR", "MTR/93", "/93,86", "MTR/x,86", "MTR/93,y"} {
		_, err := ParseGridpoint(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
