// Package query defines the declarative query model (§4.D): a typed,
// YAML-loadable description of where each manga/chapter/image field lives
// on a given site. Defaults mirror the original scraper, so a minimal
// plugin (just a hostname list) still extracts a title and a chapter
// list; the default image selector matches nothing (see Default).
package query

// Chapter describes how to extract one chapter row from a list of matched
// elements.
type Chapter struct {
	Base       string   `yaml:"base"`
	Href       string   `yaml:"href"`
	HrefAttr   []string `yaml:"hrefAttr,omitempty"`
	Title      string   `yaml:"title,omitempty"`
	TitleAttr  string   `yaml:"titleAttr,omitempty"`
	Posted     string   `yaml:"posted,omitempty"`
	PostedAttr string   `yaml:"postedAttr,omitempty"`
	Number     string   `yaml:"number,omitempty"`
	NumberAttr string   `yaml:"numberAttr,omitempty"`
}

// Manga describes the manga-root section of a page.
type Manga struct {
	Title            string   `yaml:"title"`
	TitleAttr        string   `yaml:"titleAttr,omitempty"`
	Description      string   `yaml:"description,omitempty"`
	DescriptionAttr  string   `yaml:"descriptionAttr,omitempty"`
	Cover            string   `yaml:"cover,omitempty"`
	CoverAttrs       []string `yaml:"coverAttrs,omitempty"`
	IsOngoing        string   `yaml:"isOngoing,omitempty"`
	IsOngoingAttr    string   `yaml:"isOngoingAttr,omitempty"`
	AltTitles        string   `yaml:"altTitles,omitempty"`
	AltTitlesAttr    string   `yaml:"altTitlesAttr,omitempty"`
	Authors          string   `yaml:"authors,omitempty"`
	AuthorsAttr      string   `yaml:"authorsAttr,omitempty"`
	Genres           string   `yaml:"genres,omitempty"`
	GenresAttr       string   `yaml:"genresAttr,omitempty"`
	Chapter          Chapter  `yaml:"chapter"`
}

// Images describes the image-list section of a chapter page.
type Images struct {
	Image      string   `yaml:"image"`
	ImageAttrs []string `yaml:"imageAttrs,omitempty"`
}

// Search describes a site's search endpoint, if it has one.
type Search struct {
	PathTemplate string   `yaml:"pathTemplate"`
	Encode       bool     `yaml:"encode"`
	Base         string   `yaml:"base"`
	Href         string   `yaml:"href"`
	HrefAttr     []string `yaml:"hrefAttr,omitempty"`
	Title        string   `yaml:"title,omitempty"`
	TitleAttr    string   `yaml:"titleAttr,omitempty"`
	Posted       string   `yaml:"posted,omitempty"`
	PostedAttr   string   `yaml:"postedAttr,omitempty"`
	Cover        string   `yaml:"cover,omitempty"`
	CoverAttrs   []string `yaml:"coverAttrs,omitempty"`
	// Hostnames restricts search to a subset of the plugin's hostnames; nil
	// means every hostname the plugin supports is searchable.
	Hostnames []string `yaml:"hostnames,omitempty"`
}

// Query is a plugin's full declarative configuration.
type Query struct {
	Manga     Manga    `yaml:"manga"`
	Images    Images   `yaml:"images"`
	Search    *Search  `yaml:"search,omitempty"`
	Hostnames []string `yaml:"hostnames"`
}

// Default returns the baseline query every declarative plugin starts from:
// title defaults to "h1", chapter base to "ul, ol", href to "a", image
// selector to "//img". "//img" is XPath, not valid CSS, so goquery
// matches no element with it and the default image selector finds no
// images.
func Default() Query {
	return Query{
		Manga: Manga{
			Title: "h1",
			Chapter: Chapter{
				Base: "ul, ol",
				Href: "a",
			},
		},
		Images: Images{
			Image: "//img",
		},
	}
}

// Merge overlays non-zero fields of override onto a copy of Default(),
// the pattern declarative plugins use to specify only what differs from
// the baseline.
func Merge(override Query) Query {
	base := Default()

	if override.Manga.Title != "" {
		base.Manga.Title = override.Manga.Title
	}
	base.Manga.TitleAttr = firstNonEmpty(override.Manga.TitleAttr, base.Manga.TitleAttr)
	base.Manga.Description = firstNonEmpty(override.Manga.Description, base.Manga.Description)
	base.Manga.DescriptionAttr = firstNonEmpty(override.Manga.DescriptionAttr, base.Manga.DescriptionAttr)
	base.Manga.Cover = firstNonEmpty(override.Manga.Cover, base.Manga.Cover)
	if len(override.Manga.CoverAttrs) > 0 {
		base.Manga.CoverAttrs = override.Manga.CoverAttrs
	}
	base.Manga.IsOngoing = firstNonEmpty(override.Manga.IsOngoing, base.Manga.IsOngoing)
	base.Manga.IsOngoingAttr = firstNonEmpty(override.Manga.IsOngoingAttr, base.Manga.IsOngoingAttr)
	base.Manga.AltTitles = firstNonEmpty(override.Manga.AltTitles, base.Manga.AltTitles)
	base.Manga.AltTitlesAttr = firstNonEmpty(override.Manga.AltTitlesAttr, base.Manga.AltTitlesAttr)
	base.Manga.Authors = firstNonEmpty(override.Manga.Authors, base.Manga.Authors)
	base.Manga.AuthorsAttr = firstNonEmpty(override.Manga.AuthorsAttr, base.Manga.AuthorsAttr)
	base.Manga.Genres = firstNonEmpty(override.Manga.Genres, base.Manga.Genres)
	base.Manga.GenresAttr = firstNonEmpty(override.Manga.GenresAttr, base.Manga.GenresAttr)

	if override.Manga.Chapter.Base != "" {
		base.Manga.Chapter.Base = override.Manga.Chapter.Base
	}
	if override.Manga.Chapter.Href != "" {
		base.Manga.Chapter.Href = override.Manga.Chapter.Href
	}
	if len(override.Manga.Chapter.HrefAttr) > 0 {
		base.Manga.Chapter.HrefAttr = override.Manga.Chapter.HrefAttr
	}
	base.Manga.Chapter.Title = firstNonEmpty(override.Manga.Chapter.Title, base.Manga.Chapter.Title)
	base.Manga.Chapter.TitleAttr = firstNonEmpty(override.Manga.Chapter.TitleAttr, base.Manga.Chapter.TitleAttr)
	base.Manga.Chapter.Posted = firstNonEmpty(override.Manga.Chapter.Posted, base.Manga.Chapter.Posted)
	base.Manga.Chapter.PostedAttr = firstNonEmpty(override.Manga.Chapter.PostedAttr, base.Manga.Chapter.PostedAttr)
	base.Manga.Chapter.Number = firstNonEmpty(override.Manga.Chapter.Number, base.Manga.Chapter.Number)
	base.Manga.Chapter.NumberAttr = firstNonEmpty(override.Manga.Chapter.NumberAttr, base.Manga.Chapter.NumberAttr)

	if override.Images.Image != "" {
		base.Images.Image = override.Images.Image
	}
	if len(override.Images.ImageAttrs) > 0 {
		base.Images.ImageAttrs = override.Images.ImageAttrs
	}

	base.Search = override.Search
	base.Hostnames = override.Hostnames

	return base
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// MergeAttr merges a single explicit attribute with a default priority
// list, putting the explicit attribute first without duplicating it,
// mirroring the original scraper's merge_attr_with_default helper.
func MergeAttr(explicit string, defaults []string) []string {
	if explicit == "" {
		return defaults
	}
	return MergeAttrs([]string{explicit}, defaults)
}

// MergeAttrs merges an explicit attribute-priority list with a default
// list, preserving explicit order and skipping defaults already present.
func MergeAttrs(explicit []string, defaults []string) []string {
	result := make([]string, 0, len(explicit)+len(defaults))
	seen := make(map[string]struct{}, len(explicit)+len(defaults))
	for _, attr := range explicit {
		if _, ok := seen[attr]; ok {
			continue
		}
		seen[attr] = struct{}{}
		result = append(result, attr)
	}
	for _, attr := range defaults {
		if _, ok := seen[attr]; ok {
			continue
		}
		seen[attr] = struct{}{}
		result = append(result, attr)
	}
	return result
}
