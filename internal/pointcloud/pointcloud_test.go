package pointcloud

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []r3.Vector
		wantErr bool
	}{
		{
			name:  "Simple rows",
			input: "1,2,3\n4,5,6\n",
			want:  []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
		},
		{
			name:  "Spaces and scientific notation",
			input: "1.5, -2e-1, 3\n\n0,0,1e3",
			want:  []r3.Vector{{X: 1.5, Y: -0.2, Z: 3}, {X: 0, Y: 0, Z: 1000}},
		},
		{
			name:    "Wrong field count",
			input:   "1,2\n",
			wantErr: true,
		},
		{
			name:    "Not a number",
			input:   "1,2,abc\n",
			wantErr: true,
		},
		{
			name:    "Empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Read(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, c.Points()); diff != "" {
				t.Errorf("Read() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadEmpty(t *testing.T) {
	_, err := Read(strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pc.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,1,1\n3,3,3\n"), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, r3.Vector{X: 2, Y: 2, Z: 2}, c.Centroid())

	_, err = Load(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestCloudIsImmutable(t *testing.T) {
	src := []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}
	c := New(src)
	src[0].X = 42

	pts := c.Points()
	pts[1].Y = 42

	assert.Equal(t, 1.0, c.At(0).X)
	assert.Equal(t, 1.0, c.At(1).Y)
}

func TestSubsetAndMatrix(t *testing.T) {
	c := New([]r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}, {X: 7, Y: 8, Z: 9}})

	sub := c.Subset([]int{2, 0})
	assert.Equal(t, []r3.Vector{{X: 7, Y: 8, Z: 9}, {X: 1, Y: 2, Z: 3}}, sub.Points())

	m := c.Matrix()
	r, cols := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 6.0, m.At(1, 2))
}
