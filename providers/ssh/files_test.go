package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteRel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		target  string
		wantRel string
		wantErr bool
	}{
		{
			name:    "basic nested file",
			base:    "/home/user/data",
			target:  "/home/user/data/subdir/file.txt",
			wantRel: "subdir/file.txt",
		},
		{
			name:    "trailing slash on base",
			base:    "/home/user/data/",
			target:  "/home/user/data/subdir/file.txt",
			wantRel: "subdir/file.txt",
		},
		{
			name:    "base entry itself",
			base:    "/home/user/data/",
			target:  "/home/user/data",
			wantRel: "",
		},
		{
			name:    "partial component match",
			base:    "/home/user/data",
			target:  "/home/user/datapath/file.txt",
			wantErr: true,
		},
		{
			name:    "root as base",
			base:    "/",
			target:  "/etc/passwd",
			wantRel: "etc/passwd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rel, err := remoteRel(tt.base, tt.target)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantRel, rel)
		})
	}
}
