package dispatch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs_Int(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{name: "absent", value: nil, want: 7},
		{name: "float", value: float64(22), want: 22},
		{name: "int", value: 3, want: 3},
		{name: "json number", value: json.Number("2200"), want: 2200},
		{name: "string", value: " 42 ", want: 42},
		{name: "empty string", value: "", want: 7},
		{name: "fraction", value: 1.5, wantErr: true},
		{name: "word", value: "many", wantErr: true},
		{name: "bool", value: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := Args{}
			if tt.value != nil {
				args["n"] = tt.value
			}

			got, err := args.Int("n", 7)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgs_BoolStringSeconds(t *testing.T) {
	t.Parallel()

	args := Args{"yes": true, "word": "false", "bad": "maybe", "num": float64(3), "neg": float64(-1), "s": "x"}

	b, err := args.Bool("yes", false)
	require.NoError(t, err)
	assert.True(t, b)

	b, err = args.Bool("word", true)
	require.NoError(t, err)
	assert.False(t, b)

	_, err = args.Bool("bad", false)
	require.Error(t, err)

	b, err = args.Bool("absent", true)
	require.NoError(t, err)
	assert.True(t, b)

	assert.Equal(t, "x", args.String("s", "d"))
	assert.Equal(t, "d", args.String("absent", "d"))
	assert.Equal(t, "3", args.String("num", ""))

	d, err := args.Seconds("num", 0)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	_, err = args.Seconds("neg", 0)
	require.Error(t, err)

	_, err = args.Require("absent")
	require.ErrorIs(t, err, errMissing)

	_, err = Args{"blank": "  "}.Require("blank")
	require.ErrorIs(t, err, errMissing)
}
