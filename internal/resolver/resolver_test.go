package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore records every lookup so tests can assert memoization.
type fakeStore struct {
	provinceCalls []string
	cityCalls     []string

	provinceIDs map[string]string
	cityIDs     map[string]string
}

func (s *fakeStore) FindProvinceID(_ context.Context, name string) (*string, error) {
	s.provinceCalls = append(s.provinceCalls, name)
	if id, ok := s.provinceIDs[name]; ok {
		return &id, nil
	}
	return nil, nil
}

func (s *fakeStore) FindCityID(_ context.Context, name, provinceID string) (*string, error) {
	s.cityCalls = append(s.cityCalls, name+"/"+provinceID)
	if id, ok := s.cityIDs[name]; ok {
		return &id, nil
	}
	return nil, nil
}

func TestProvince_AliasAndAccentStripping(t *testing.T) {
	store := &fakeStore{provinceIDs: map[string]string{"córdoba": "prov-cba"}}
	r := New(store, zap.NewNop())

	// All spellings collapse to the same alias key and the same lookup.
	for _, raw := range []string{"CORDOBA", "Córdoba", "  cordoba "} {
		id := r.Province(context.Background(), raw)
		require.NotNil(t, id, "raw %q", raw)
		assert.Equal(t, "prov-cba", *id)
	}

	require.Len(t, store.provinceCalls, 1)
	assert.Equal(t, "córdoba", store.provinceCalls[0])
}

func TestProvince_MemoizesUnresolvedToo(t *testing.T) {
	store := &fakeStore{}
	r := New(store, zap.NewNop())

	assert.Nil(t, r.Province(context.Background(), "ATLANTIDA"))
	assert.Nil(t, r.Province(context.Background(), "ATLANTIDA"))

	assert.Len(t, store.provinceCalls, 1)
}

func TestProvince_EmptyIsNilWithoutLookup(t *testing.T) {
	store := &fakeStore{}
	r := New(store, zap.NewNop())

	assert.Nil(t, r.Province(context.Background(), "  "))
	assert.Empty(t, store.provinceCalls)
}

func TestCity_ReplacementRules(t *testing.T) {
	store := &fakeStore{cityIDs: map[string]string{
		"capitan bermudez":             "city-1",
		"coronel rodolfo s. dominguez": "city-2",
		"puerto general san martin":    "city-3",
	}}
	r := New(store, zap.NewNop())
	prov := "prov-sf"

	cases := map[string]string{
		"CAP.BERMUDEZ":      "city-1",
		"CORONEL DOMINGUEZ": "city-2",
		"PUERTO SAN MARTIN": "city-3",
	}
	for raw, want := range cases {
		id := r.City(context.Background(), raw, &prov)
		require.NotNil(t, id, "raw %q", raw)
		assert.Equal(t, want, *id)
	}
}

func TestCity_NilProvinceShortCircuits(t *testing.T) {
	store := &fakeStore{}
	r := New(store, zap.NewNop())

	assert.Nil(t, r.City(context.Background(), "ROSARIO", nil))
	assert.Empty(t, store.cityCalls)
}

func TestCity_MemoizedPerProvince(t *testing.T) {
	store := &fakeStore{cityIDs: map[string]string{"rosario": "city-ros"}}
	r := New(store, zap.NewNop())
	provA := "prov-a"
	provB := "prov-b"

	r.City(context.Background(), "ROSARIO", &provA)
	r.City(context.Background(), "ROSARIO", &provA)
	r.City(context.Background(), "ROSARIO", &provB)

	// Same city in a different province is a distinct cache entry.
	assert.Len(t, store.cityCalls, 2)
}
