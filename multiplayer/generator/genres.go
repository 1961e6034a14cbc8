package generator

// Genre is a catalog entry.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var genres = []Genre{
	{ID: "fantasy", Name: "Fantasy"},
	{ID: "sci-fi", Name: "Science Fiction"},
	{ID: "mystery", Name: "Mystery"},
	{ID: "horror", Name: "Horror"},
	{ID: "romance", Name: "Romance"},
	{ID: "adventure", Name: "Adventure"},
	{ID: "thriller", Name: "Thriller"},
	{ID: "comedy", Name: "Comedy"},
}

// Genres returns the catalog in display order.
func Genres() []Genre {
	return append([]Genre(nil), genres...)
}

// LookupGenre finds a genre by id.
func LookupGenre(id string) (Genre, bool) {
	for _, g := range genres {
		if g.ID == id {
			return g, true
		}
	}
	return Genre{}, false
}

// StoryTitle is the title given to a new story of the genre.
func StoryTitle(genreID string) string {
	if g, ok := LookupGenre(genreID); ok {
		return g.Name + " Adventure"
	}
	return "Untitled Adventure"
}
