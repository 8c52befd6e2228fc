package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLaunch(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Launch
		wantErr string
	}{
		{name: "empty", args: nil, want: Launch{}},
		{name: "positional", args: []string{"a.bib", "b.bib"}, want: Launch{Libraries: []string{"a.bib", "b.bib"}}},
		{
			name: "flags and positional",
			args: []string{"--open", "/tmp/x.bib", "-i", "new.ris", "c.bib"},
			want: Launch{Libraries: []string{"/tmp/x.bib", "c.bib"}, Imports: []string{"new.ris"}},
		},
		{
			name: "canonical form",
			args: []string{"--open=/tmp/-dash.bib", "--import=/tmp/a=b.ris"},
			want: Launch{Libraries: []string{"/tmp/-dash.bib"}, Imports: []string{"/tmp/a=b.ris"}},
		},
		{name: "terminator", args: []string{"--", "--open"}, want: Launch{Libraries: []string{"--open"}}},
		{name: "unknown flag", args: []string{"--blank"}, wantErr: "unknown flag"},
		{name: "missing value", args: []string{"--import"}, wantErr: "needs an argument"},
		{name: "empty path", args: []string{"--open="}, wantErr: "empty path"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLaunch(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestLaunchArgsRoundTrip(t *testing.T) {
	launch := Launch{
		Libraries: []string{"/tmp/a.bib", "/tmp/-odd name.bib"},
		Imports:   []string{"/tmp/in.ris"},
	}

	args := launch.Args()
	require.Equal(t, []string{"--open=/tmp/a.bib", "--open=/tmp/-odd name.bib", "--import=/tmp/in.ris"}, args)

	parsed, err := ParseLaunch(args)
	require.NoError(t, err)
	require.Equal(t, launch, parsed)
}

func TestLaunchResolve(t *testing.T) {
	launch := Launch{
		Libraries: []string{"papers/a.bib", "/abs/b.bib"},
		Imports:   []string{"../in.ris"},
	}

	resolved := launch.Resolve("/home/user/work")
	require.Equal(t, []string{"/home/user/work/papers/a.bib", "/abs/b.bib"}, resolved.Libraries)
	require.Equal(t, []string{"/home/user/in.ris"}, resolved.Imports)
	require.Equal(t, []string{"papers/a.bib", "/abs/b.bib"}, launch.Libraries)
}

func TestLaunchEmpty(t *testing.T) {
	require.True(t, Launch{}.Empty())
	require.False(t, Launch{Imports: []string{"x.ris"}}.Empty())
}
