package provider

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistory_MarshalShapes(t *testing.T) {
	b, err := json.Marshal(History{Closes: []float64{1.5, 2}})
	require.NoError(t, err)
	require.JSONEq(t, `[1.5, 2]`, string(b))

	b, err = json.Marshal(History{Points: []Point{{X: 1717000000000, Y: 190.1}}})
	require.NoError(t, err)
	require.JSONEq(t, `[{"x": 1717000000000, "y": 190.1}]`, string(b))

	b, err = json.Marshal(History{})
	require.NoError(t, err)
	require.Equal(t, `[]`, string(b))
}

func TestHistory_UnmarshalRoundTrip(t *testing.T) {
	var h History
	require.NoError(t, json.Unmarshal([]byte(`[{"x":1,"y":2.5}]`), &h))
	require.Equal(t, []Point{{X: 1, Y: 2.5}}, h.Points)
	require.Nil(t, h.Closes)

	h = History{}
	require.NoError(t, json.Unmarshal([]byte(`[3, 4]`), &h))
	require.Equal(t, []float64{3, 4}, h.Closes)
	require.Equal(t, 2, h.Len())

	h = History{}
	require.NoError(t, json.Unmarshal([]byte(` [ ] `), &h))
	require.NotNil(t, h.Closes)
	require.Zero(t, h.Len())
}

func TestParsePercent(t *testing.T) {
	cases := map[string]float64{
		"-0.5328%":  -0.5328,
		"1.2%":      1.2,
		"(+1.23%)":  1.23,
		"(-0.45%)":  -0.45,
		" 12 % ":    12,
		"1,024.5%":  1024.5,
	}
	for in, want := range cases {
		got, err := ParsePercent(in)
		require.NoErrorf(t, err, "input %q", in)
		require.InDeltaf(t, want, got, 1e-9, "input %q", in)
	}

	_, err := ParsePercent("n/a")
	require.Error(t, err)
}

func TestParse_RejectsNonFinite(t *testing.T) {
	for _, in := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity", "1e999"} {
		_, err := ParseNumber(in)
		require.Errorf(t, err, "input %q", in)
		_, err = ParsePercent(in + "%")
		require.Errorf(t, err, "input %q", in)
	}

	_, err := ParsePercent("(NaN%)")
	require.ErrorIs(t, err, ErrNotFinite)
}

func TestFinite(t *testing.T) {
	require.True(t, Quote{Price: 1, High: Float(2)}.Finite())
	require.False(t, Quote{Price: math.NaN()}.Finite())
	require.False(t, Quote{Price: 1, Low: Float(math.Inf(-1))}.Finite())

	var none *History
	require.True(t, none.Finite())
	require.True(t, (&History{Points: []Point{{X: 1, Y: 2}}}).Finite())
	require.False(t, (&History{Points: []Point{{X: 1, Y: math.Inf(1)}}}).Finite())
	require.False(t, (&History{Closes: []float64{math.NaN()}}).Finite())
}

func TestError_Classification(t *testing.T) {
	cause := errors.New("429")
	err := error(RateLimited("slow down", cause))

	var perr *Error
	require.True(t, errors.As(err, &perr))
	require.Equal(t, KindRateLimited, perr.Kind)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "no_data: No quote data.", NoData("No quote data.").Error())
}
