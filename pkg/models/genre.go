package models

// Genre describes one of the fixed story genres a player can pick
type Genre struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Theme string `json:"theme"` // Presentation hint (accent color name)
}

// The fixed genre set
var (
	GenreSciFi   = Genre{ID: "scifi", Label: "Sci-Fi", Theme: "cyan"}
	GenreFantasy = Genre{ID: "fantasy", Label: "Fantasy", Theme: "amber"}
	GenreHorror  = Genre{ID: "horror", Label: "Horror", Theme: "red"}
	GenreMystery = Genre{ID: "mystery", Label: "Mystery", Theme: "violet"}
)

// Genres returns the selectable genres in menu order
func Genres() []Genre {
	return []Genre{GenreSciFi, GenreFantasy, GenreHorror, GenreMystery}
}

// LookupGenre finds a genre by its identifier
func LookupGenre(id string) (Genre, bool) {
	for _, g := range Genres() {
		if g.ID == id {
			return g, true
		}
	}
	return Genre{}, false
}

var loadingMessages = map[string][]string{
	"scifi": {
		"Initializing neural link...",
		"Decrypting narrative stream...",
		"Rendering cyber-structures...",
		"Compiling future timelines...",
		"Syncing with the mainframe...",
	},
	"fantasy": {
		"Consulting the ancient scrolls...",
		"Summoning the narrative spirits...",
		"Polishing the crystal ball...",
		"Weaving the threads of fate...",
		"Brewing potions of imagination...",
	},
	"horror": {
		"Checking under the bed...",
		"Listening to the whispers...",
		"Something is approaching...",
		"Manifesting your fears...",
		"Don't look behind you...",
	},
	"mystery": {
		"Gathering clues...",
		"Dusting for fingerprints...",
		"Connecting the dots...",
		"Questioning the witnesses...",
		"Following the trail...",
	},
}

var defaultLoadingMessages = []string{
	"Loading next chapter...",
	"Writing your destiny...",
	"Thinking...",
}

// LoadingMessages returns the rotating wait messages for a genre.
// Unknown genres get the default set.
func LoadingMessages(genreID string) []string {
	msgs, ok := loadingMessages[genreID]
	if !ok {
		msgs = defaultLoadingMessages
	}
	return append([]string(nil), msgs...)
}
