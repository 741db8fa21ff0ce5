package svo

import (
	"fmt"
	"strings"
)

// Voxel is a palette id. 0 is AIR.
type Voxel uint8

const (
	Air Voxel = iota
	Stone
	Dirt
	Grass
	Snow
	DeadGrass
	MoistGrass
	Sand
	Mud
	Clay
	Fire
	Magma
	Water
	OakWood
	OakLeaves
	BirchWood
	BirchLeaves
	SpruceWood
	SpruceLeaves
	Cactus
	Gold
	Mirror
	Bright
)

var voxelNames = [...]string{
	"Air",
	"Stone",
	"Dirt",
	"Grass",
	"Snow",
	"Dead Grass",
	"Moist Grass",
	"Sand",
	"Mud",
	"Clay",
	"Fire",
	"Magma",
	"Water",
	"Oak Wood",
	"Oak Leaves",
	"Birch Wood",
	"Birch Leaves",
	"Spruce Wood",
	"Spruce Leaves",
	"Cactus",
	"Gold",
	"Mirror",
	"Bright",
}

// Palette returns the display names indexed by voxel id.
func Palette() []string {
	out := make([]string, len(voxelNames))
	copy(out, voxelNames[:])
	return out
}

func (v Voxel) String() string {
	if int(v) < len(voxelNames) {
		return voxelNames[v]
	}
	return fmt.Sprintf("Voxel(%d)", uint8(v))
}

// ParseVoxel resolves a palette name. Case, spaces and underscores are ignored,
// so "OAK_WOOD" and "Oak Wood" both name OakWood.
func ParseVoxel(name string) (Voxel, bool) {
	key := normalizeName(name)
	for i, n := range voxelNames {
		if normalizeName(n) == key {
			return Voxel(i), true
		}
	}
	return Air, false
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, " ", "")
}

// IsEmpty reports whether the voxel can be moved through and does not collide.
func (v Voxel) IsEmpty() bool {
	return v == Air || v == Water
}

// Placeable lists the voxels an observer may place, in inventory order.
var Placeable = []Voxel{
	Stone, Dirt, Grass, Snow, DeadGrass, MoistGrass, Sand, Mud, Clay, Fire, Magma, Water,
	OakWood, OakLeaves, BirchWood, BirchLeaves, SpruceWood, SpruceLeaves, Cactus, Gold, Mirror, Bright,
}
