package tags_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/pcg-director/internal/errors"
	"github.com/KirkDiggler/pcg-director/internal/tags"
)

type RegistryTestSuite struct {
	suite.Suite
	registry *tags.Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) SetupTest() {
	s.registry = tags.DefaultRegistry()
}

func (s *RegistryTestSuite) TestResolveExactKey() {
	tag, err := s.registry.Resolve("Atmosphere.Dark_Foggy")
	s.Require().NoError(err)
	s.Equal("Atmosphere.Dark_Foggy", tag.Key)
	s.Equal(tags.CategoryAtmosphere, tag.Category)
	s.Equal("Dark_Foggy", tag.Leaf())
	s.True(tag.IsValid())
}

func (s *RegistryTestSuite) TestResolveUnknownKey() {
	tag, err := s.registry.Resolve("Aggro.Extreme")
	s.Require().Error(err)
	s.True(errors.Is(err, tags.ErrUnknownTag))
	s.True(errors.IsNotFound(err))
	s.Equal("Aggro.Extreme", errors.GetMeta(err)["tag"])
	s.False(tag.IsValid())
	s.Equal(tags.Tag{}, tag)
}

func (s *RegistryTestSuite) TestResolveIn() {
	testCases := []struct {
		name     string
		category tags.Category
		value    string
		wantKey  string
		wantErr  bool
	}{
		{"full key", tags.CategoryAggression, "Aggro.High", "Aggro.High", false},
		{"bare leaf", tags.CategoryAtmosphere, "Dark_Foggy", "Atmosphere.Dark_Foggy", false},
		{"bare leaf with spaces", tags.CategoryObstacle, " Trap ", "Obstacle.Trap", false},
		{"unregistered leaf", tags.CategoryAggression, "Berserk", "", true},
		{"other category key", tags.CategoryAggression, "Obstacle.Trap", "", true},
		{"empty", tags.CategoryObstacle, "", "", true},
		{"unknown category", tags.CategoryUnknown, "High", "", true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			tag, err := s.registry.ResolveIn(tc.category, tc.value)
			if tc.wantErr {
				s.Error(err)
				s.False(tag.IsValid())
				return
			}
			s.Require().NoError(err)
			s.Equal(tc.wantKey, tag.Key)
			s.Equal(tc.category, tag.Category)
		})
	}
}

func (s *RegistryTestSuite) TestRegister() {
	tag, err := s.registry.Register("Aggro.Berserk")
	s.Require().NoError(err)
	s.Equal(tags.CategoryAggression, tag.Category)

	resolved, err := s.registry.ResolveIn(tags.CategoryAggression, "Berserk")
	s.Require().NoError(err)
	s.Equal(tag, resolved)

	_, err = s.registry.Register("Weather.Rain")
	s.True(errors.IsInvalidArgument(err))

	_, err = s.registry.Register("Aggro")
	s.True(errors.IsInvalidArgument(err))

	_, err = s.registry.Register("Aggro.")
	s.True(errors.IsInvalidArgument(err))
}

func (s *RegistryTestSuite) TestRegistriesAreIndependent() {
	other, err := tags.NewRegistry("Aggro.Low")
	s.Require().NoError(err)

	_, err = other.Resolve("Aggro.High")
	s.Error(err)
	s.Equal([]string{"Aggro.Low"}, other.Keys())
	s.Len(s.registry.Keys(), len(tags.DefaultKeys))
}

func (s *RegistryTestSuite) TestNewRegistryRejectsBadKey() {
	_, err := tags.NewRegistry("Aggro.Low", "nope")
	s.Error(err)
}

func (s *RegistryTestSuite) TestTagJSON() {
	tag, err := s.registry.Resolve("Obstacle.Dense")
	s.Require().NoError(err)

	data, err := json.Marshal(map[string]tags.Tag{"obstacle": tag, "empty": {}})
	s.Require().NoError(err)
	s.JSONEq(`{"obstacle":"Obstacle.Dense","empty":""}`, string(data))

	var decoded map[string]tags.Tag
	s.Require().NoError(json.Unmarshal(data, &decoded))
	s.Equal(tag, decoded["obstacle"])
	s.False(decoded["empty"].IsValid())
}

func (s *RegistryTestSuite) TestCategoryOf() {
	s.Equal(tags.CategoryAggression, tags.CategoryOf("Aggro.Low"))
	s.Equal(tags.CategoryObstacle, tags.CategoryOf("Obstacle"))
	s.Equal(tags.CategoryUnknown, tags.CategoryOf("Dark_Foggy"))
	s.Equal("Atmosphere", tags.CategoryAtmosphere.String())
	s.Equal("Unknown", tags.CategoryUnknown.String())
}
