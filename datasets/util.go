package datasets

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
)

var movieDirRe = regexp.MustCompile(`^movie(\d+)$`)

// FindMovies lists the movie numbers under dir that have a movieN_actions.mat.
func FindMovies(dir string) ([]int, error) {
	pattern := filepath.Join(dir, "movie*", "movie*_actions.mat")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	var movies []int
	for _, m := range matches {
		sub := movieDirRe.FindStringSubmatch(filepath.Base(filepath.Dir(m)))
		if sub == nil {
			continue
		}
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			continue
		}
		if filepath.Base(m) != fmt.Sprintf("movie%d_actions.mat", n) {
			continue
		}
		movies = append(movies, n)
	}
	if len(movies) == 0 {
		return nil, fmt.Errorf("no movies found in %s", dir)
	}
	slices.Sort(movies)
	return movies, nil
}
