package memory

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/skill-ladder/ladder-hub/internal/domain/user"
)

// Fixtures is the reference data a dev store starts with.
type Fixtures struct {
	Skills []struct {
		ID          string `koanf:"id"`
		Name        string `koanf:"name"`
		Description string `koanf:"description"`
	} `koanf:"skills"`

	Users []struct {
		ID           string `koanf:"id"`
		Username     string `koanf:"username"`
		CurrentLevel int    `koanf:"current_level"`
		Reputation   int    `koanf:"reputation"`
	} `koanf:"users"`

	UserSkills []struct {
		UserID           string `koanf:"user_id"`
		SkillID          string `koanf:"skill_id"`
		Role             string `koanf:"role"`
		ProficiencyLevel int    `koanf:"proficiency_level"`
		IsVerified       bool   `koanf:"is_verified"`
	} `koanf:"user_skills"`
}

// LoadFixtures reads a YAML fixtures file and seeds the store with it.
func (s *Store) LoadFixtures(path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("memory: load fixtures %s: %w", path, err)
	}

	var fx Fixtures
	if err := k.UnmarshalWithConf("", &fx, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("memory: decode fixtures: %w", err)
	}
	return s.Seed(fx)
}

// Seed inserts the fixtures, rejecting unknown roles.
func (s *Store) Seed(fx Fixtures) error {
	for _, sk := range fx.Skills {
		s.PutSkill(user.Skill{ID: sk.ID, Name: sk.Name, Description: sk.Description})
	}
	for _, u := range fx.Users {
		s.PutUser(user.User{
			ID:           u.ID,
			Username:     u.Username,
			CurrentLevel: u.CurrentLevel,
			Reputation:   u.Reputation,
		})
	}
	for _, us := range fx.UserSkills {
		role := user.Role(us.Role)
		if !role.IsValid() {
			return fmt.Errorf("memory: user skill %s/%s: unknown role %q", us.UserID, us.SkillID, us.Role)
		}
		s.PutUserSkill(user.UserSkill{
			UserID:           us.UserID,
			SkillID:          us.SkillID,
			Role:             role,
			ProficiencyLevel: us.ProficiencyLevel,
			IsVerified:       us.IsVerified,
		})
	}
	return nil
}
