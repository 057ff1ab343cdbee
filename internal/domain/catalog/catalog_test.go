package catalog

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_Clone(t *testing.T) {
	orig := Track{
		TrackHash: "t1",
		Title:     "Song",
		Artists:   []ArtistRef{{ArtistHash: "a1", Name: "Artist 1"}},
	}

	c := orig.Clone()
	orig.Artists[0].Name = "changed"
	orig.Title = "changed"

	assert.Equal(t, "Artist 1", c.Artists[0].Name)
	assert.Equal(t, "Song", c.Title)
	assert.Equal(t, "t1", c.Hash())
}

func TestTrack_ArtistNames(t *testing.T) {
	tests := []struct {
		name     string
		artists  []ArtistRef
		expected string
	}{
		{name: "no artists", artists: nil, expected: ""},
		{name: "single artist", artists: []ArtistRef{{Name: "A"}}, expected: "A"},
		{name: "multiple artists", artists: []ArtistRef{{Name: "A"}, {Name: "B"}}, expected: "A, B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Track{Artists: tt.artists}.ArtistNames())
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected SortOrder
		wantErr  bool
	}{
		{input: "asc", expected: SortAsc},
		{input: "DESC", expected: SortDesc},
		{input: "", expected: SortAsc},
		{input: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSortOrder(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	assert.Equal(t, 0, SortAsc.Reverse())
	assert.Equal(t, 1, SortDesc.Reverse())
}

func TestParseResourceType(t *testing.T) {
	rt, err := ParseResourceType(" Artists ")
	require.NoError(t, err)
	assert.Equal(t, ResourceArtists, rt)

	_, err = ParseResourceType("folders")
	assert.Error(t, err)
}

func TestIsRejected(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "remote error", err: &RemoteError{Status: 500}, expected: true},
		{name: "wrapped remote error", err: errors.Wrap(&RemoteError{Status: 401}, "fetch"), expected: true},
		{name: "malformed", err: fmt.Errorf("decode: %w", ErrMalformedResponse), expected: true},
		{name: "transport", err: errors.New("connection refused"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRejected(tt.err))
		})
	}
}

func TestRemoteError_IsUnauthorized(t *testing.T) {
	assert.True(t, (&RemoteError{Status: 401}).IsUnauthorized())
	assert.False(t, (&RemoteError{Status: 500, Message: "boom"}).IsUnauthorized())
	assert.Contains(t, (&RemoteError{Status: 500, Message: "boom"}).Error(), "boom")
}

func TestParseAlbumGroup(t *testing.T) {
	tests := []struct {
		in      string
		want    AlbumGroup
		wantErr bool
	}{
		{in: "albums", want: GroupAlbums},
		{in: "Singles", want: GroupSinglesAndEPs},
		{in: "eps", want: GroupSinglesAndEPs},
		{in: "compilations", want: GroupCompilations},
		{in: "appears_on", want: GroupAppearances},
		{in: "mixtapes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlbumGroup(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscography_Group(t *testing.T) {
	d := Discography{
		Albums:        []Album{{AlbumHash: "a"}, {AlbumHash: "b"}},
		SinglesAndEPs: []Album{{AlbumHash: "s"}},
		Appearances:   []Album{{AlbumHash: "x"}},
	}

	assert.Equal(t, 4, d.Len())
	assert.Equal(t, "s", d.Group(GroupSinglesAndEPs)[0].Hash())
	assert.Empty(t, d.Group(GroupCompilations))
	assert.Nil(t, d.Group(AlbumGroup("bogus")))
}
