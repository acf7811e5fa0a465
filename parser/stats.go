package parser

import (
	"strings"

	"github.com/google/uuid"
)

type ExtStats struct {
	Type        string `json:"Type"`
	Label       string `json:"Label"`
	UUID        string `json:"UUID"`
	BlockSize   uint64 `json:"BlockSize"`
	BlocksCount uint64 `json:"BlocksCount"`
	FreeBlocks  uint64 `json:"FreeBlocks"`
	InodesCount uint32 `json:"InodesCount"`
	FreeInodes  uint32 `json:"FreeInodes"`
	InodeSize   uint16 `json:"InodeSize"`
	Groups      uint64 `json:"Groups"`

	FeatureCompat   uint32 `json:"FeatureCompat"`
	FeatureIncompat uint32 `json:"FeatureIncompat"`
	FeatureROCompat uint32 `json:"FeatureROCompat"`
}

func (self *ExtContext) Stats() ExtStats {
	res := ExtStats{
		Type:            self.Type(),
		Label:           strings.TrimRight(string(self.sb.volume_name[:]), "\x00"),
		BlockSize:       self.block_size,
		BlocksCount:     self.sb.blocks_count,
		FreeBlocks:      self.sb.free_blocks_count,
		InodesCount:     self.sb.inodes_count,
		FreeInodes:      self.sb.free_inodes_count,
		InodeSize:       self.sb.inode_size,
		Groups:          self.group_count,
		FeatureCompat:   self.sb.feature_compat,
		FeatureIncompat: self.sb.feature_incompat,
		FeatureROCompat: self.sb.feature_ro_compat,
	}

	id, err := uuid.FromBytes(self.sb.uuid[:])
	if err == nil {
		res.UUID = id.String()
	}

	return res
}
