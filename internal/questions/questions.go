// Package questions is the read-only question bank consumed by duels.
package questions

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/questions.yaml
var bundled embed.FS

const bundledPath = "data/questions.yaml"

var ErrNotEnoughQuestions = errors.New("not enough questions")

type Option struct {
	Letter string `yaml:"letter"`
	Text   string `yaml:"text"`
}

type Question struct {
	ID         string   `yaml:"id"`
	Source     string   `yaml:"source"`
	Area       string   `yaml:"area"`
	Difficulty string   `yaml:"difficulty"`
	Text       string   `yaml:"text"`
	Options    []Option `yaml:"options"`
	Correct    string   `yaml:"correct"`
}

// IsCorrect reports whether letter designates the correct option.
// Letters are compared case-insensitively.
func (q Question) IsCorrect(letter string) bool {
	return strings.EqualFold(strings.TrimSpace(letter), q.Correct)
}

type file struct {
	Questions []Question `yaml:"questions"`
}

// Bank is an immutable, in-memory collection of questions.
//
// Multiple goroutines may invoke methods on a Bank simultaneously.
type Bank struct {
	questions []Question
	byID      map[string]int
	byArea    map[string][]string
}

// Bundled loads the question bank embedded in the binary.
func Bundled() (*Bank, error) {
	return LoadFS(bundled, bundledPath)
}

// LoadFile loads a question bank from a YAML file on disk.
func LoadFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func LoadFS(fsys fs.FS, name string) (*Bank, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML question bank and validates every record.
func Load(r io.Reader) (*Bank, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	return New(doc.Questions)
}

func New(questions []Question) (*Bank, error) {
	b := &Bank{
		questions: make([]Question, 0, len(questions)),
		byID:      make(map[string]int, len(questions)),
		byArea:    map[string][]string{},
	}
	for _, q := range questions {
		if err := validate(q); err != nil {
			return nil, err
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("question %q: duplicate id", q.ID)
		}
		b.byID[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
		b.byArea[q.Area] = append(b.byArea[q.Area], q.ID)
	}
	return b, nil
}

func validate(q Question) error {
	if q.ID == "" {
		return errors.New("question with empty id")
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("question %q: no options", q.ID)
	}
	if !slices.ContainsFunc(q.Options, func(o Option) bool { return o.Letter == q.Correct }) {
		return fmt.Errorf("question %q: correct option %q is not listed", q.ID, q.Correct)
	}
	return nil
}

// Len returns the number of questions in the bank.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Get resolves a question by id.
func (b *Bank) Get(id string) (Question, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Question{}, false
	}
	return b.questions[i], true
}

// Sample draws n distinct question ids in random order. When area is set
// and holds fewer than n questions, the whole bank is used instead.
func (b *Bank) Sample(r *rand.Rand, n int, area string) ([]string, error) {
	pool := b.byArea[area]
	if area == "" || len(pool) < n {
		pool = make([]string, 0, len(b.questions))
		for _, q := range b.questions {
			pool = append(pool, q.ID)
		}
	}
	if n <= 0 || len(pool) < n {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrNotEnoughQuestions, n, len(pool))
	}

	ids := slices.Clone(pool)
	r.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids[:n], nil
}

type Area struct {
	Name      string
	Questions int
}

// Areas lists the distinct areas of the bank sorted by name.
func (b *Bank) Areas() []Area {
	areas := make([]Area, 0, len(b.byArea))
	for name, ids := range b.byArea {
		areas = append(areas, Area{Name: name, Questions: len(ids)})
	}
	sort.Slice(areas, func(i, j int) bool {
		return areas[i].Name < areas[j].Name
	})
	return areas
}
