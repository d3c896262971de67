package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cme-labs/cme-init/pkg/consts"
)

func TestResolve_NewestPerService(t *testing.T) {
	artifacts := []Artifact{
		{Name: "api-layer", Version: "1.2.0"},
		{Name: "api-layer", Version: "1.3.0"},
		{Name: "hardware-layer", Version: "2.0.0"},
	}
	required := []consts.ServiceName{consts.ServiceAPI, consts.ServiceHW, consts.ServiceWeb}

	res := Resolve(artifacts, required)

	require.Contains(t, res, consts.ServiceAPI)
	assert.Equal(t, "1.3.0", res[consts.ServiceAPI].String())
	require.Contains(t, res, consts.ServiceHW)
	assert.Equal(t, "2.0.0", res[consts.ServiceHW].String())

	assert.NotContains(t, res, consts.ServiceWeb)
	assert.False(t, res.Complete(required))
	assert.Equal(t, []consts.ServiceName{consts.ServiceWeb}, res.Missing(required))
}

func TestResolve_OrderIrrelevant(t *testing.T) {
	required := []consts.ServiceName{consts.ServiceAPI}
	a := Resolve([]Artifact{
		{Name: "api-layer", Version: "1.3.0"},
		{Name: "api-layer", Version: "1.2.0"},
	}, required)
	b := Resolve([]Artifact{
		{Name: "api-layer", Version: "1.2.0"},
		{Name: "api-layer", Version: "1.3.0"},
	}, required)
	assert.Equal(t, a[consts.ServiceAPI].String(), b[consts.ServiceAPI].String())
}

func TestResolve_PreReleasePrecedence(t *testing.T) {
	res := Resolve([]Artifact{
		{Name: "api-layer", Version: "2.0.0-rc.1"},
		{Name: "api-layer", Version: "2.0.0"},
	}, []consts.ServiceName{consts.ServiceAPI})
	assert.Equal(t, "2.0.0", res[consts.ServiceAPI].String())
}

func TestResolve_MalformedVersionSkipped(t *testing.T) {
	res := Resolve([]Artifact{
		{Name: "api-layer", Version: "latest"},
		{Name: "api-layer", Version: "1.0.0"},
	}, []consts.ServiceName{consts.ServiceAPI})
	require.Contains(t, res, consts.ServiceAPI)
	assert.Equal(t, "1.0.0", res[consts.ServiceAPI].String())
}

func TestResolve_AllMalformedMeansAbsent(t *testing.T) {
	res := Resolve([]Artifact{
		{Name: "api-layer", Version: "latest"},
	}, []consts.ServiceName{consts.ServiceAPI})
	assert.NotContains(t, res, consts.ServiceAPI)
}

func TestResolve_ForeignNamesIgnored(t *testing.T) {
	res := Resolve([]Artifact{
		{Name: "debian", Version: "12.0.0"},
		{Name: "api-layer", Version: "1.0.0"},
	}, []consts.ServiceName{consts.ServiceAPI})
	assert.Len(t, res, 1)
}

func TestResolve_EmptyCatalog(t *testing.T) {
	required := []consts.ServiceName{consts.ServiceAPI, consts.ServiceHW, consts.ServiceWeb}
	res := Resolve(nil, required)
	assert.Empty(t, res)
	assert.Equal(t, required, res.Missing(required))
}
