package enchant

// Probabilities are estimates based on typical game balance, not the game's real table.
var defaultTemplates = []OptionTemplate{
	// legendary, 0.5% total
	{"최대 대미지", KindStat, 21, 30, "증가", TierLegendary, 0.0015},
	{"마법 공격력", KindStat, 21, 30, "증가", TierLegendary, 0.0015},
	{"공격 속도 세트 효과", KindSet, 1, 1, "증가", TierLegendary, 0.001},
	{"배쉬 강화 세트 효과", KindSet, 1, 1, "증가", TierLegendary, 0.0005},
	{"매그넘 샷 강화 세트 효과", KindSet, 1, 1, "증가", TierLegendary, 0.0005},

	// rare, 4.5%
	{"최대 대미지", KindStat, 11, 20, "증가", TierRare, 0.005},
	{"마법 공격력", KindStat, 11, 20, "증가", TierRare, 0.005},
	{"크리티컬", KindStat, 4, 5, "% 증가", TierRare, 0.01},
	{"크리티컬 대미지", KindStat, 3, 4, "% 증가", TierRare, 0.01},
	{"보호", KindStat, 2, 3, "증가", TierRare, 0.005},
	{"피어싱 저항", KindStat, 1, 1, "증가", TierRare, 0.005},
	{"음악 버프 효과", KindStat, 1, 1, "증가", TierRare, 0.005},

	// uncommon, 25%
	{"최대 대미지", KindStat, 6, 10, "증가", TierUncommon, 0.02},
	{"마법 공격력", KindStat, 6, 10, "증가", TierUncommon, 0.02},
	{"4대 속성 연금 대미지", KindStat, 10, 30, "증가", TierUncommon, 0.03},
	{"마리오네트 최대 대미지", KindStat, 10, 30, "증가", TierUncommon, 0.03},
	{"크리티컬", KindStat, 1, 3, "% 증가", TierUncommon, 0.05},
	{"보호", KindStat, 1, 1, "증가", TierUncommon, 0.05},
	{"체력", KindStat, 15, 30, "증가", TierUncommon, 0.025},
	{"지력", KindStat, 15, 30, "증가", TierUncommon, 0.025},

	// common, 70%
	{"최대 대미지", KindStat, 1, 5, "증가", TierCommon, 0.07},
	{"마법 공격력", KindStat, 1, 5, "증가", TierCommon, 0.07},
	{"생명력", KindStat, 1, 100, "증가", TierCommon, 0.1},
	{"마나", KindStat, 1, 100, "증가", TierCommon, 0.1},
	{"스태미나", KindStat, 1, 100, "증가", TierCommon, 0.1},
	{"체력", KindStat, 1, 15, "증가", TierCommon, 0.04},
	{"지력", KindStat, 1, 15, "증가", TierCommon, 0.04},
	{"솜씨", KindStat, 1, 15, "증가", TierCommon, 0.04},
	{"의지", KindStat, 1, 15, "증가", TierCommon, 0.04},
	{"행운", KindStat, 1, 15, "증가", TierCommon, 0.04},
	{"밸런스", KindStat, 1, 5, "% 증가", TierCommon, 0.06},
}

// DefaultCatalog returns the compiled-in holy water option table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultTemplates)
	if err != nil {
		panic("enchant: default catalog: " + err.Error())
	}
	return c
}
