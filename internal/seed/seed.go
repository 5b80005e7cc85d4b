// Package seed loads authored challenge sets and publishes them to a store.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/okian/dugout/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a challenge set:
//
//	challenges:
//	  - title: Home Run Derby (2023)
//	    rule: Pick players with the most home runs in 2023!
//	    pick_limit: 3
//	    players_pool:
//	      - {id: player_1, name: Aaron Judge, team: NYY, stats: {hrs: 62}}
type File struct {
	Challenges []Entry `yaml:"challenges"`
}

// Entry is one authored challenge. ChallengeDate is optional; undated entries
// are scheduled by Publish.
type Entry struct {
	ID            string         `yaml:"id"`
	Title         string         `yaml:"title"`
	Rule          string         `yaml:"rule"`
	PickLimit     int            `yaml:"pick_limit"`
	ChallengeDate string         `yaml:"challenge_date"`
	Pool          []model.Player `yaml:"players_pool"`
}

// Challenge converts the entry to its domain form.
func (e Entry) Challenge() model.Challenge {
	return model.Challenge{
		ID:            e.ID,
		Title:         e.Title,
		Rule:          e.Rule,
		PickLimit:     e.PickLimit,
		ChallengeDate: e.ChallengeDate,
		Pool:          e.Pool,
	}
}

// Parse decodes a challenge set. Unknown fields are rejected.
func Parse(r io.Reader) ([]model.Challenge, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoChallenges
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if len(f.Challenges) == 0 {
		return nil, ErrNoChallenges
	}
	out := make([]model.Challenge, 0, len(f.Challenges))
	for _, e := range f.Challenges {
		out = append(out, e.Challenge())
	}
	return out, nil
}

// LoadFile reads and parses the challenge set at path.
func LoadFile(path string) ([]model.Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return Parse(bytes.NewReader(data))
}

func player(id, name, team, stat string, value float64) model.Player {
	return model.Player{ID: id, Name: name, Team: team, Stats: map[string]float64{stat: value}}
}

// Defaults returns the built-in example set.
func Defaults() []model.Challenge {
	return []model.Challenge{
		{
			Title:     "Home Run Derby (2023)",
			Rule:      "Pick players with the most home runs in 2023!",
			PickLimit: 3,
			Pool: []model.Player{
				player("player_1", "Aaron Judge", "NYY", "hrs", 62),
				player("player_2", "Shohei Ohtani", "LAA", "hrs", 46),
				player("player_3", "Matt Olson", "ATL", "hrs", 54),
				player("player_4", "Mookie Betts", "LAD", "hrs", 39),
				player("player_5", "Kyle Schwarber", "PHI", "hrs", 47),
				player("player_6", "Pete Alonso", "NYM", "hrs", 46),
				player("player_7", "Vladimir Guerrero Jr.", "TOR", "hrs", 26),
				player("player_8", "Fernando Tatis Jr.", "SD", "hrs", 25),
			},
		},
		{
			Title:     "RBI Machine (2021)",
			Rule:      "Pick players with the most RBIs in 2021!",
			PickLimit: 3,
			Pool: []model.Player{
				player("player_1", "Jose Abreu", "CWS", "rbis", 117),
				player("player_2", "Rafael Devers", "BOS", "rbis", 113),
				player("player_3", "Vladimir Guerrero Jr.", "TOR", "rbis", 111),
				player("player_4", "Matt Olson", "OAK", "rbis", 111),
				player("player_5", "Aaron Judge", "NYY", "rbis", 98),
				player("player_6", "Bryce Harper", "PHI", "rbis", 84),
				player("player_7", "Mookie Betts", "LAD", "rbis", 93),
				player("player_8", "Shohei Ohtani", "LAA", "rbis", 100),
			},
		},
		{
			Title:     "Stolen Base Kings (2022)",
			Rule:      "Pick players with the most stolen bases in 2022!",
			PickLimit: 3,
			Pool: []model.Player{
				player("player_1", "Trea Turner", "LAD", "sb", 33),
				player("player_2", "Ronald Acuña Jr.", "ATL", "sb", 29),
				player("player_3", "Jazz Chisholm Jr.", "MIA", "sb", 23),
				player("player_4", "Bobby Witt Jr.", "KC", "sb", 30),
				player("player_5", "Francisco Lindor", "NYM", "sb", 16),
				player("player_6", "Myles Straw", "CLE", "sb", 21),
				player("player_7", "Starling Marte", "NYM", "sb", 18),
				player("player_8", "Corbin Carroll", "ARI", "sb", 23),
			},
		},
		{
			Title:     "Career RBI Legends",
			Rule:      "Pick players with the most career RBIs!",
			PickLimit: 3,
			Pool: []model.Player{
				player("player_1", "Albert Pujols", "MLB", "rbis", 2218),
				player("player_2", "Miguel Cabrera", "DET", "rbis", 1887),
				player("player_3", "Nelson Cruz", "SD", "rbis", 1325),
				player("player_4", "Joey Votto", "CIN", "rbis", 1100),
				player("player_5", "Freddie Freeman", "LAD", "rbis", 1250),
				player("player_6", "Paul Goldschmidt", "STL", "rbis", 1300),
				player("player_7", "Anthony Rizzo", "NYY", "rbis", 1100),
				player("player_8", "Bryce Harper", "PHI", "rbis", 900),
			},
		},
		{
			Title:     "Single-Season HR Race (2000)",
			Rule:      "Pick players with the most home runs in the 2000 season!",
			PickLimit: 3,
			Pool: []model.Player{
				player("player_1", "Barry Bonds", "SF", "hrs", 49),
				player("player_2", "Sammy Sosa", "CHC", "hrs", 50),
				player("player_3", "Luis Gonzalez", "ARI", "hrs", 57),
				player("player_4", "Mark McGwire", "STL", "hrs", 32),
				player("player_5", "Ken Griffey Jr.", "CIN", "hrs", 40),
				player("player_6", "Alex Rodriguez", "SEA", "hrs", 41),
				player("player_7", "Jeff Bagwell", "HOU", "hrs", 47),
				player("player_8", "Troy Glaus", "ANA", "hrs", 47),
			},
		},
		{
			Title:     "Speedsters (Career)",
			Rule:      "Pick players with the most career stolen bases!",
			PickLimit: 3,
			Pool: []model.Player{
				player("player_1", "Rickey Henderson", "MLB", "sb", 1406),
				player("player_2", "Lou Brock", "MLB", "sb", 938),
				player("player_3", "Ichiro Suzuki", "SEA", "sb", 509),
				player("player_4", "Dee Strange-Gordon", "MLB", "sb", 336),
				player("player_5", "Juan Pierre", "MLB", "sb", 614),
				player("player_6", "Jose Reyes", "MLB", "sb", 517),
				player("player_7", "Barry Bonds", "MLB", "sb", 514),
				player("player_8", "Kenny Lofton", "MLB", "sb", 622),
			},
		},
	}
}
