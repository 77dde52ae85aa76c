package testutil

import (
	"songbook/internal/models"
)

// SongBuilder provides a fluent interface for creating test songs
type SongBuilder struct {
	song *models.Song
}

// NewSongBuilder creates a new song builder with a title and artist set
func NewSongBuilder() *SongBuilder {
	return &SongBuilder{
		song: &models.Song{
			Title:  models.String("Test Song"),
			Artist: models.String("Test Artist"),
		},
	}
}

// WithID sets the song ID
func (b *SongBuilder) WithID(id string) *SongBuilder {
	b.song.ID = id
	return b
}

// WithTitle sets the song title
func (b *SongBuilder) WithTitle(title string) *SongBuilder {
	b.song.Title = models.String(title)
	return b
}

// WithArtist sets the song artist
func (b *SongBuilder) WithArtist(artist string) *SongBuilder {
	b.song.Artist = models.String(artist)
	return b
}

// WithGenres sets the genres
func (b *SongBuilder) WithGenres(genres ...string) *SongBuilder {
	b.song.Genres = genres
	return b
}

// WithLyrics sets the lyrics
func (b *SongBuilder) WithLyrics(lyrics string) *SongBuilder {
	b.song.Lyrics = models.String(lyrics)
	return b
}

// WithMusic sets the music credit
func (b *SongBuilder) WithMusic(music string) *SongBuilder {
	b.song.Music = models.String(music)
	return b
}

// WithYear sets the release year
func (b *SongBuilder) WithYear(year int) *SongBuilder {
	b.song.Year = models.Int(year)
	return b
}

// WithDuration sets the duration in seconds
func (b *SongBuilder) WithDuration(seconds int) *SongBuilder {
	b.song.Duration = models.Int(seconds)
	return b
}

// WithLink sets the link
func (b *SongBuilder) WithLink(link string) *SongBuilder {
	b.song.Link = models.String(link)
	return b
}

// Build returns a copy of the song so the builder can be reused
func (b *SongBuilder) Build() *models.Song {
	return b.song.Clone()
}

// CreateTestSong creates a basic test song with default values
func CreateTestSong() *models.Song {
	return NewSongBuilder().
		WithGenres("rock").
		WithYear(1990).
		WithDuration(185).
		Build()
}

// CreateQueenSong creates a fully populated song
func CreateQueenSong() *models.Song {
	return NewSongBuilder().
		WithTitle("Bohemian Rhapsody").
		WithArtist("Queen").
		WithGenres("rock", "opera").
		WithLyrics("Is this the real life? Is this just fantasy?").
		WithMusic("Freddie Mercury").
		WithYear(1975).
		WithDuration(355).
		WithLink("https://example.com/bohemian-rhapsody").
		Build()
}
