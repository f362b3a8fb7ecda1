package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "mediashare/pkg/domain"
	dErrors "mediashare/pkg/domain-errors"
)

const (
	alice = id.OwnerID("alice")
	bob   = id.OwnerID("bob")
	carol = id.OwnerID("carol")
)

type MediaAssetSuite struct {
	suite.Suite
	now time.Time
}

func TestMediaAssetSuite(t *testing.T) {
	suite.Run(t, new(MediaAssetSuite))
}

func (s *MediaAssetSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *MediaAssetSuite) newAsset() *MediaAsset {
	a, err := NewMediaAsset("m1", "Title", alice, s.now)
	s.Require().NoError(err)
	return a
}

func (s *MediaAssetSuite) transfer(a *MediaAsset, assetID id.AssetID, from, to id.OwnerID, pct int) (*MediaAsset, error) {
	next, _, err := TransferShare(a, Transfer{AssetID: assetID, From: from, To: to, Percentage: pct}, s.now.Add(time.Minute))
	return next, err
}

func (s *MediaAssetSuite) TestCreate() {
	s.Run("creator holds the whole asset", func() {
		a := s.newAsset()
		s.Equal(Partition{{Owner: alice, Share: 100}}, a.Partition)
		s.Equal(alice, a.Creator)
		s.Equal(id.AssetID("m1"), a.AssetID)
		s.Equal("Title", a.Title)
		s.NoError(a.Partition.Validate())
	})

	s.Run("rejects empty fields", func() {
		_, err := NewMediaAsset("", "Title", alice, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		_, err = NewMediaAsset("m1", "", alice, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		_, err = NewMediaAsset("m1", "Title", "", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *MediaAssetSuite) TestTransferScenarios() {
	s.Run("partial transfer appends the recipient", func() {
		next, err := s.transfer(s.newAsset(), "m1", alice, bob, 40)
		s.Require().NoError(err)
		s.Equal(Partition{{Owner: alice, Share: 60}, {Owner: bob, Share: 40}}, next.Partition)
	})

	s.Run("transferring the remainder removes the sender", func() {
		mid, err := s.transfer(s.newAsset(), "m1", alice, bob, 40)
		s.Require().NoError(err)
		next, err := s.transfer(mid, "m1", alice, bob, 60)
		s.Require().NoError(err)
		s.Equal(Partition{{Owner: bob, Share: 100}}, next.Partition)
	})

	s.Run("existing recipient accumulates", func() {
		a := s.newAsset()
		a, err := s.transfer(a, "m1", alice, bob, 10)
		s.Require().NoError(err)
		a, err = s.transfer(a, "m1", alice, carol, 20)
		s.Require().NoError(err)
		a, err = s.transfer(a, "m1", carol, bob, 5)
		s.Require().NoError(err)
		s.Equal(Partition{{Owner: alice, Share: 70}, {Owner: bob, Share: 15}, {Owner: carol, Share: 15}}, a.Partition)
	})

	s.Run("exited owner re-enters at the end", func() {
		a := s.newAsset()
		a, err := s.transfer(a, "m1", alice, bob, 50)
		s.Require().NoError(err)
		a, err = s.transfer(a, "m1", alice, carol, 50)
		s.Require().NoError(err)
		a, err = s.transfer(a, "m1", bob, alice, 25)
		s.Require().NoError(err)
		s.Equal(Partition{{Owner: bob, Share: 25}, {Owner: carol, Share: 50}, {Owner: alice, Share: 25}}, a.Partition)
	})

	s.Run("self transfer leaves the partition unchanged", func() {
		next, _, err := TransferShare(s.newAsset(), Transfer{AssetID: "m1", From: alice, To: alice, Percentage: 30}, s.now)
		s.Require().NoError(err)
		s.Equal(Partition{{Owner: alice, Share: 100}}, next.Partition)
	})

	s.Run("whole asset can move in one transfer", func() {
		next, err := s.transfer(s.newAsset(), "m1", alice, bob, 100)
		s.Require().NoError(err)
		s.Equal(Partition{{Owner: bob, Share: 100}}, next.Partition)
	})
}

func (s *MediaAssetSuite) TestTransferRejections() {
	twoOwners := func() *MediaAsset {
		a, err := s.transfer(s.newAsset(), "m1", alice, bob, 40)
		s.Require().NoError(err)
		return a
	}

	cases := []struct {
		name  string
		input func() *MediaAsset
		xfer  Transfer
		code  dErrors.Code
	}{
		{"percentage above 100", s.newAsset, Transfer{AssetID: "m1", From: alice, To: bob, Percentage: 999}, dErrors.CodeInvalidPercentage},
		{"zero percentage", s.newAsset, Transfer{AssetID: "m1", From: alice, To: bob, Percentage: 0}, dErrors.CodeInvalidPercentage},
		{"negative percentage", s.newAsset, Transfer{AssetID: "m1", From: alice, To: bob, Percentage: -5}, dErrors.CodeInvalidPercentage},
		{"more than sender holds", twoOwners, Transfer{AssetID: "m1", From: alice, To: bob, Percentage: 90}, dErrors.CodeInsufficientOwnership},
		{"wrong asset id", s.newAsset, Transfer{AssetID: "wrong-id", From: alice, To: bob, Percentage: 10}, dErrors.CodeInvalidAssetID},
		{"sender without a stake", twoOwners, Transfer{AssetID: "m1", From: carol, To: bob, Percentage: 10}, dErrors.CodeFromNotFound},
		{"asset id checked before percentage", s.newAsset, Transfer{AssetID: "nope", From: alice, To: bob, Percentage: 999}, dErrors.CodeInvalidAssetID},
		{"percentage checked before lookup", s.newAsset, Transfer{AssetID: "m1", From: carol, To: bob, Percentage: 0}, dErrors.CodeInvalidPercentage},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			input := tc.input()
			before := input.Clone()

			next, _, err := TransferShare(input, tc.xfer, s.now)
			s.Require().Error(err)
			s.Nil(next)
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
			s.True(dErrors.IsRegistryRejection(err))
			s.Equal(before, input, "input must be untouched")
		})
	}
}

func (s *MediaAssetSuite) TestTransferOutcome() {
	a := s.newAsset()
	next, out, err := TransferShare(a, Transfer{AssetID: "m1", From: alice, To: bob, Percentage: 100}, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.True(out.FromExited)
	s.True(out.ToAppended)
	s.Equal(0, out.FromShare)
	s.Equal(100, out.ToShare)
	s.Equal(a.Version+1, next.Version)
	s.Equal(s.now.Add(time.Hour), next.UpdatedAt)
	s.Equal(a.CreatedAt, next.CreatedAt)
}

func (s *MediaAssetSuite) TestSuccessfulTransferDoesNotAliasInput() {
	a := s.newAsset()
	next, err := s.transfer(a, "m1", alice, bob, 40)
	s.Require().NoError(err)

	next.Partition[0].Share = 1
	s.Equal(100, a.Partition[0].Share)
	s.Len(a.Partition, 1)
}

func (s *MediaAssetSuite) TestPartitionValidate() {
	cases := map[string]Partition{
		"empty":          {},
		"zero share":     {{Owner: alice, Share: 100}, {Owner: bob, Share: 0}},
		"duplicate":      {{Owner: alice, Share: 50}, {Owner: alice, Share: 50}},
		"short of 100":   {{Owner: alice, Share: 60}, {Owner: bob, Share: 30}},
		"over 100":       {{Owner: alice, Share: 101}},
		"negative share": {{Owner: alice, Share: 110}, {Owner: bob, Share: -10}},
		"empty owner":    {{Owner: "", Share: 100}},
	}
	for name, p := range cases {
		s.Run(name, func() {
			err := p.Validate()
			s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation), "got %v", err)
		})
	}
}
