package tmdb

import (
	"strings"

	"reelmeta/internal/movielens"
)

// MovieDetails models the /movie/{id} payload with credits and keywords appended.
type MovieDetails struct {
	ID                  int64               `json:"id"`
	Title               string              `json:"title"`
	Overview            string              `json:"overview"`
	Tagline             string              `json:"tagline"`
	ReleaseDate         string              `json:"release_date"`
	Runtime             *int64              `json:"runtime"`
	OriginalLanguage    string              `json:"original_language"`
	OriginalTitle       string              `json:"original_title"`
	Status              string              `json:"status"`
	Budget              *int64              `json:"budget"`
	Revenue             *int64              `json:"revenue"`
	VoteAverage         *float64            `json:"vote_average"`
	VoteCount           *int64              `json:"vote_count"`
	Popularity          *float64            `json:"popularity"`
	Adult               bool                `json:"adult"`
	Homepage            string              `json:"homepage"`
	ProductionCompanies []ProductionCompany `json:"production_companies"`
	ProductionCountries []ProductionCountry `json:"production_countries"`
	Credits             Credits             `json:"credits"`
	Keywords            KeywordList         `json:"keywords"`
}

// ProductionCompany is a TMDb production company entry.
type ProductionCompany struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductionCountry is a TMDb production country entry.
type ProductionCountry struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

// Credits holds the appended credits block.
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember is a billed cast entry; TMDb returns cast in billing order.
type CastMember struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// CrewMember is a crew entry.
type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// KeywordList holds the appended keywords block.
type KeywordList struct {
	Keywords []Keyword `json:"keywords"`
}

// Keyword is a TMDb keyword.
type Keyword struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Details maps the payload onto the enrichment columns, keeping the first
// castLimit billed cast members. A non-positive castLimit keeps all cast.
func (m *MovieDetails) Details(castLimit int) *movielens.Details {
	if m == nil {
		return movielens.EmptyDetails()
	}
	d := &movielens.Details{
		Synopsis:         m.Overview,
		Tagline:          m.Tagline,
		ReleaseDate:      m.ReleaseDate,
		Runtime:          m.Runtime,
		OriginalLanguage: m.OriginalLanguage,
		OriginalTitle:    m.OriginalTitle,
		Status:           m.Status,
		Budget:           m.Budget,
		Revenue:          m.Revenue,
		VoteAverage:      m.VoteAverage,
		VoteCount:        m.VoteCount,
		Popularity:       m.Popularity,
		Adult:            m.Adult,
		Homepage:         m.Homepage,
	}

	cast := m.Credits.Cast
	if castLimit > 0 && len(cast) > castLimit {
		cast = cast[:castLimit]
	}
	for _, member := range cast {
		d.Cast = appendName(d.Cast, member.Name)
	}
	for _, member := range m.Credits.Crew {
		if member.Job == "Director" {
			d.Directors = appendName(d.Directors, member.Name)
		}
	}
	for _, kw := range m.Keywords.Keywords {
		d.Keywords = appendName(d.Keywords, kw.Name)
	}
	for _, company := range m.ProductionCompanies {
		d.ProductionCompanies = appendName(d.ProductionCompanies, company.Name)
	}
	for _, country := range m.ProductionCountries {
		d.ProductionCountries = appendName(d.ProductionCountries, country.ISO31661)
	}
	return d
}

// appendName drops blanks and strips the list separator so joined columns split cleanly.
func appendName(dst []string, name string) []string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "|", "/"))
	if name == "" {
		return dst
	}
	return append(dst, name)
}
