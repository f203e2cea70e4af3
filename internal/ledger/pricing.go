package ledger

// NetworkCut is the community-fund share of a token amount: cutPerBlock for
// every full block of 100 tokens, rounded down.
func NetworkCut(tokens, cutPerBlock int64) int64 {
	if tokens <= 0 || cutPerBlock <= 0 {
		return 0
	}
	return (tokens / 100) * cutPerBlock
}

// Tier is a VIP level derived from the balance.
type Tier struct {
	Name       string   `json:"name"`
	Icon       string   `json:"icon"`
	MinBalance int64    `json:"min_balance"`
	Perks      []string `json:"perks"`
}

var tiers = []Tier{
	{Name: "Luminary", Icon: "✦", MinBalance: 500, Perks: []string{"Priority ticker placement", "Golden badge", "Exclusive zenith animation"}},
	{Name: "Stargazer", Icon: "✧", MinBalance: 300, Perks: []string{"Enhanced card glow", "Tier badge"}},
	{Name: "Wanderer", Icon: "✦", MinBalance: 100, Perks: []string{"Tier badge"}},
	{Name: "Seeker", Icon: "○", MinBalance: 0, Perks: []string{}},
}

// TierFor returns the highest tier whose threshold balance reaches.
func TierFor(balance int64) Tier {
	for _, t := range tiers {
		if balance >= t.MinBalance {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// IsVIP reports whether balance sits in the top tier.
func IsVIP(balance int64) bool {
	return balance >= tiers[0].MinBalance
}

// Summary is the read model shown above the game.
type Summary struct {
	Balance      int64 `json:"balance"`
	NetworkFund  int64 `json:"network_fund"`
	Tier         Tier  `json:"tier"`
	VIP          bool  `json:"vip"`
	Goal         int64 `json:"community_goal"`
	GoalProgress int   `json:"community_goal_pct"`
	GoalReached  bool  `json:"community_goal_reached"`
}

// Summary reports balance, fund, tier and progress toward goal.
func (b *Bank) Summary(goal int64) Summary {
	s := Summary{
		Balance:     b.Balance,
		NetworkFund: b.NetworkFund,
		Tier:        TierFor(b.Balance),
		VIP:         IsVIP(b.Balance),
		Goal:        goal,
	}
	if goal > 0 {
		s.GoalReached = b.NetworkFund >= goal
		if s.GoalReached {
			s.GoalProgress = 100
		} else {
			s.GoalProgress = int(b.NetworkFund * 100 / goal)
		}
	}
	return s
}
