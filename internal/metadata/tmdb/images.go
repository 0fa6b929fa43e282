package tmdb

// ImageBaseURL is the host all relative image paths resolve against.
const ImageBaseURL = "https://image.tmdb.org/t/p/"

// PosterPlaceholderURL is shown when a movie has no poster.
const PosterPlaceholderURL = "https://www.themoviedb.org/assets/2/v4/glyphicons/basic/glyphicons-basic-38-picture-grey-c2ebdbb057f2a7614185931650f8cee23fa137b93812ccb132b9df511df1cfac.svg"

// ImageSize is a TMDb image size variant.
type ImageSize string

const (
	SizeW200     ImageSize = "w200"
	SizeW300     ImageSize = "w300"
	SizeW500     ImageSize = "w500"
	SizeOriginal ImageSize = "original"
)

// DefaultImageSize is used when no size is given.
const DefaultImageSize = SizeW300

// ParseImageSize maps a size name to an ImageSize, falling back to the default.
func ParseImageSize(s string) ImageSize {
	switch ImageSize(s) {
	case SizeW200, SizeW300, SizeW500, SizeOriginal:
		return ImageSize(s)
	}
	return DefaultImageSize
}

// ImageURL returns the full URL for a relative image path, or "" when the
// path is empty.
func ImageURL(path string, size ImageSize) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = DefaultImageSize
	}
	return ImageBaseURL + string(size) + path
}

// PosterURL resolves a poster path, substituting the placeholder when absent.
func PosterURL(path string, size ImageSize) string {
	if u := ImageURL(path, size); u != "" {
		return u
	}
	return PosterPlaceholderURL
}
