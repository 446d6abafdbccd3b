package problem

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetspan/internal/vrp"
)

func TestLoadYAML(t *testing.T) {
	s, err := Load("testdata/cross.yaml")
	require.NoError(t, err)
	assert.Equal(t, "cross", s.Name)
	require.Len(t, s.Vehicles, 2)
	require.Len(t, s.Jobs, 4)
	assert.Equal(t, 10.0, s.Jobs[0].Location.X)

	p, err := s.Build(nil)
	require.NoError(t, err)
	assert.IsType(t, vrp.EuclideanCosts{}, p.Transport)
	assert.True(t, p.Vehicles[0].ReturnToDepot)
	assert.Equal(t, []string{"depot", "east", "west", "north", "south"}, s.LocationIDs())
}

func TestLoadJSONWithMatrixFile(t *testing.T) {
	s, err := Load("testdata/triangle.json")
	require.NoError(t, err)
	m, err := LoadMatrix("testdata/triangle.matrix", s.Costs.Symmetric)
	require.NoError(t, err)

	p, err := s.Build(m)
	require.NoError(t, err)
	require.Len(t, p.Vehicles, 1)
	assert.False(t, p.Vehicles[0].ReturnToDepot)
	assert.Equal(t, 2.0, p.Jobs[1].Demand)

	a, b := vrp.Location{ID: "a"}, vrp.Location{ID: "b"}
	assert.Equal(t, 5.0, p.Transport.Cost(b, a, 0, vrp.NoDriver, p.Vehicles[0]))
	assert.Equal(t, 10.0, p.Transport.Time(b, a, 0, vrp.NoDriver, p.Vehicles[0]))
}

func TestBuildMatrixNeedsEveryPair(t *testing.T) {
	s, err := Load("testdata/triangle.json")
	require.NoError(t, err)
	_, err = s.Build(nil)
	assert.ErrorContains(t, err, "no distance")

	s.Costs.Matrix = []MatrixEntry{
		{From: "depot", To: "a", Distance: 1, Time: 1},
		{From: "depot", To: "b", Distance: 1, Time: 1},
		{From: "a", To: "b", Distance: 1, Time: 1},
	}
	_, err = s.Build(nil)
	assert.NoError(t, err)
}

func TestValidateAggregatesErrors(t *testing.T) {
	s := &Spec{
		Costs: CostsSpec{Kind: "teleport"},
		Jobs: []JobSpec{
			{ID: "a", Location: vrp.Location{ID: "a"}},
			{ID: "a", Location: vrp.Location{ID: "a"}, EarliestStart: 5, LatestStart: 2},
			{Location: vrp.Location{ID: "x"}},
		},
	}
	err := s.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{`unknown costs kind "teleport"`, "no vehicles", `job "a": duplicate id`, "closes before it opens", "job 2: missing id"} {
		assert.Contains(t, msg, want)
	}
	_, err = s.Build(nil)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("vehicles: [unclosed"))
	assert.ErrorContains(t, err, "problem: decode")

	_, err = Load("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestReadMatrix(t *testing.T) {
	in := `
# comment
a b 2 4
  b c 3.5 7
`
	m, err := ReadMatrix(strings.NewReader(in), false)
	require.NoError(t, err)
	a, b, c := vrp.Location{ID: "a"}, vrp.Location{ID: "b"}, vrp.Location{ID: "c"}
	assert.Equal(t, 2.0, m.Distance(a, b))
	assert.Equal(t, 7.0, m.Time(b, c, 0, vrp.NoDriver, nil))
	assert.True(t, math.IsNaN(m.Distance(b, a)), "asymmetric matrix leaves reverse pair unset")

	m, err = ReadMatrix(strings.NewReader(in), true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, m.Distance(b, a))
}

func TestReadMatrixErrors(t *testing.T) {
	cases := map[string]string{
		"a b 1":        "want 4 fields",
		"a b x 1":      "distance",
		"a b 1 y":      "time",
		"a b -1 1":     "negative",
		"ok\na b 1 2":  "line 1",
		"# c\n\na b 1": "line 3",
	}
	for in, want := range cases {
		_, err := ReadMatrix(strings.NewReader(in), true)
		assert.ErrorContains(t, err, want, "input %q", in)
	}
}
