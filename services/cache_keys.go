package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type cacheKeyKind int

const (
	keyDRepsPage cacheKeyKind = iota
	keyDRep
	keyDRepDelegators
	keyDRepVotingHistory
	keyDRepMetadata
	keyDRepStats
	keyActionsPage
	keyAction
	keyActionVotes
	keyActionParticipation
	keyStakeDelegation
	keyEpochStartTime
	keyActionMetadataValidation
)

// CacheKey identifies a cached value. Keys are only built through the
// constructors below, which keep the set of variants closed.
type CacheKey struct {
	kind     cacheKeyKind
	id       string
	page     int
	count    int
	filters  string
	epoch    uint32
	hash     string
	verifier bool
	version  int
}

func DRepsPageKey(page, count int, filters string) CacheKey {
	return CacheKey{kind: keyDRepsPage, page: page, count: count, filters: filters}
}

func DRepKey(id string) CacheKey { return CacheKey{kind: keyDRep, id: id} }

func DRepDelegatorsKey(id string) CacheKey { return CacheKey{kind: keyDRepDelegators, id: id} }

func DRepVotingHistoryKey(id string) CacheKey { return CacheKey{kind: keyDRepVotingHistory, id: id} }

func DRepMetadataKey(id string) CacheKey { return CacheKey{kind: keyDRepMetadata, id: id} }

func DRepStatsKey() CacheKey { return CacheKey{kind: keyDRepStats} }

func ActionsPageKey(page, count int) CacheKey {
	return CacheKey{kind: keyActionsPage, page: page, count: count}
}

func ActionKey(id string) CacheKey { return CacheKey{kind: keyAction, id: id} }

func ActionVotesKey(id string) CacheKey { return CacheKey{kind: keyActionVotes, id: id} }

func ActionParticipationKey(id string) CacheKey {
	return CacheKey{kind: keyActionParticipation, id: id}
}

func StakeDelegationKey(stakeAddress string) CacheKey {
	return CacheKey{kind: keyStakeDelegation, id: stakeAddress}
}

func EpochStartTimeKey(epoch uint32) CacheKey {
	return CacheKey{kind: keyEpochStartTime, epoch: epoch}
}

// ActionMetadataValidationKey covers every input that changes a validation
// result, so a config change naturally misses older entries.
func ActionMetadataValidationKey(actionID string, metaHash *string, verifierEnabled bool, version int) CacheKey {
	k := CacheKey{kind: keyActionMetadataValidation, id: actionID, verifier: verifierEnabled, version: version}
	if metaHash != nil {
		k.hash = strings.ToLower(strings.TrimSpace(*metaHash))
	}
	return k
}

// String is the stable serialization used as the store key. Free-form
// components are query-escaped so no value can forge a separator.
func (k CacheKey) String() string {
	id := url.QueryEscape(k.id)
	switch k.kind {
	case keyDRepsPage:
		s := fmt.Sprintf("dreps_page:page=%d:count=%d", k.page, k.count)
		if k.filters != "" {
			s += ":filters=" + url.QueryEscape(k.filters)
		}
		return s
	case keyDRep:
		return "drep:" + id
	case keyDRepDelegators:
		return "drep_delegators:" + id
	case keyDRepVotingHistory:
		return "drep_votes:" + id
	case keyDRepMetadata:
		return "drep_metadata:" + id
	case keyDRepStats:
		return "dreps_stats"
	case keyActionsPage:
		return fmt.Sprintf("actions_page:page=%d:count=%d", k.page, k.count)
	case keyAction:
		return "action:" + id
	case keyActionVotes:
		return "action_votes:" + id
	case keyActionParticipation:
		return "action_participation:" + id
	case keyStakeDelegation:
		return "stake_delegation:" + id
	case keyEpochStartTime:
		return fmt.Sprintf("epoch_start_time:%d", k.epoch)
	case keyActionMetadataValidation:
		hash := "nohash"
		if k.hash != "" {
			hash = "hash=" + url.QueryEscape(k.hash)
		}
		return fmt.Sprintf("action_metadata:%s:%s:verifier=%t:v=%d", id, hash, k.verifier, k.version)
	}
	return fmt.Sprintf("unknown:%d", k.kind)
}

// TTL is the lifetime of values stored under this key.
func (k CacheKey) TTL() time.Duration {
	switch k.kind {
	case keyDRepsPage, keyActionsPage:
		if k.page <= 1 {
			return 30 * time.Second
		}
		return 60 * time.Second
	case keyDRep, keyAction:
		return 120 * time.Second
	case keyDRepStats, keyStakeDelegation:
		return 60 * time.Second
	case keyDRepDelegators, keyActionVotes, keyActionParticipation:
		return 180 * time.Second
	case keyDRepVotingHistory:
		return 300 * time.Second
	case keyDRepMetadata, keyActionMetadataValidation:
		return 600 * time.Second
	case keyEpochStartTime:
		return 3600 * time.Second
	}
	return 60 * time.Second
}

// immutable keys hold values that never change once known.
func (k CacheKey) immutable() bool {
	return k.kind == keyEpochStartTime
}
