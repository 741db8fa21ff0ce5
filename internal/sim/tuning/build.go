package tuning

import (
	"voxeltrace.ai/internal/sim/game"
	"voxeltrace.ai/internal/sim/svo"
	"voxeltrace.ai/internal/sim/terrain/gen"
)

func (t Tuning) WorldConfig() svo.Config {
	return svo.Config{
		MaxDepth:    uint32(t.World.MaxDepth),
		BufferBytes: uint64(t.World.BufferBudgetBytes),
		Min:         svo.V3(t.World.Min[0], t.World.Min[1], t.World.Min[2]),
	}
}

// GenParams keeps the spawn clearing centred on the initial world cube, where
// the observer starts.
func (t Tuning) GenParams() gen.Params {
	half := t.WorldSize() / 2
	return gen.Params{
		Seed:                t.World.Seed,
		WaterLevel:          t.Gen.WaterLevel,
		BaseHeight:          t.Gen.BaseHeight,
		HeightScale:         t.Gen.HeightScale,
		TreePermille:        t.Gen.TreePermille,
		CactusPermille:      t.Gen.CactusPermille,
		SprucePermille:      t.Gen.SprucePermille,
		GoldClusterPermille: t.Gen.GoldClusterPermille,
		SpawnX:              t.World.Min[0] + half,
		SpawnZ:              t.World.Min[2] + half,
		SpawnClearRadius:    t.Gen.SpawnClearRadius,
	}
}

func (t Tuning) GameConfig() game.Config {
	return game.Config{
		TickRateHz: t.Sim.TickRateHz,
		EdgeMargin: t.Stream.EdgeMargin,
		InboxSize:  t.Sim.InboxSize,
	}
}
