package models

// Direction of a trade.
const (
	DirectionLong  = "Long"
	DirectionShort = "Short"
)

// Rule condition operators.
const (
	ConditionGTE = ">="
	ConditionLTE = "<="
	ConditionGT  = ">"
	ConditionLT  = "<"
)

// Rule indicators usable by stop/trailing rules.
const (
	IndicatorEMA      = "ema"
	IndicatorSMA      = "sma"
	IndicatorCustomMA = "custom_ma"
	IndicatorATR      = "atr"
	IndicatorEMACross = "ema_cross"
)

// MAConfig selects a moving-average flavour for custom_ma rules.
type MAConfig struct {
	Type   string `json:"type"` // "sma" or "ema"
	Length int    `json:"length"`
}

// RuleParams carries indicator parameters for a rule.
type RuleParams struct {
	Lookback      int       `json:"lookback,omitempty"`
	Offset        float64   `json:"offset,omitempty"`
	MAConfig      *MAConfig `json:"ma_config,omitempty"`
	ATRPeriod     int       `json:"atr_period,omitempty"`
	ATRMultiplier float64   `json:"atr_multiplier,omitempty"`
}

// Rule is one declarative condition. Simple price rules compare
// PrimarySource against Value with Condition; indicator rules name the
// indicator and its parameters instead. Take-profit rules may carry an
// exit quantity (absolute shares or percent of the filled quantity).
type Rule struct {
	PrimarySource   string     `json:"primary_source"`
	Condition       string     `json:"condition"`
	SecondarySource string     `json:"secondary_source,omitempty"`
	Value           float64    `json:"value,omitempty"`
	Indicator       string     `json:"indicator,omitempty"`
	Parameters      RuleParams `json:"parameters,omitempty"`
	ExitQty         int        `json:"exit_qty,omitempty"`
	ExitPct         float64    `json:"exit_pct,omitempty"`
}

// ActiveStop is the single stop considered live at one evaluation.
// Recomputed on every tick, never persisted.
type ActiveStop struct {
	Type  string  `json:"type"`
	Price float64 `json:"price"`
}

// Volatility holds preloaded ADR/ATR percentages for a symbol.
type Volatility struct {
	ADR float64 `json:"adr"`
	ATR float64 `json:"atr"`
}

// Trade is the central aggregate, one open trade per symbol. The struct
// is closed: records with a different shape are rejected at the
// persistence boundary instead of being patched up downstream.
type Trade struct {
	TradeID   string `json:"trade_id"`
	Symbol    string `json:"symbol"`
	Direction string `json:"direction"`
	Quantity  int    `json:"quantity"`

	EntryRules        []Rule `json:"entry_rules"`
	InitialStopRules  []Rule `json:"initial_stop_rules,omitempty"`
	TrailingStopRules []Rule `json:"trailing_stop_rules,omitempty"`
	TakeProfitRules   []Rule `json:"take_profit_rules,omitempty"`

	OrderStatus OrderStatus `json:"order_status"`
	TradeStatus TradeStatus `json:"trade_status"`
	Editing     bool        `json:"editing,omitempty"`

	// Sizing inputs (activation pipeline).
	PortfolioValue float64 `json:"portfolio_value,omitempty"`
	RiskPct        float64 `json:"risk_pct,omitempty"`
	OrderType      string  `json:"order_type,omitempty"`
	TimeInForce    string  `json:"time_in_force,omitempty"`
	Lookback       int     `json:"lookback,omitempty"`

	// Fill and exit facts.
	FilledQty     int     `json:"filled_qty,omitempty"`
	ExecutedPrice float64 `json:"executed_price,omitempty"`
	ExitPrice     float64 `json:"exit_price,omitempty"`
	ExitQty       int     `json:"exit_qty,omitempty"`
	RealizedPnL   float64 `json:"realized_pnl,omitempty"`

	Volatility *Volatility `json:"volatility,omitempty"`

	// Derived per evaluation. The trailing stop is a ratchet: it only
	// moves in the direction favorable to the position.
	ActiveStop          *ActiveStop `json:"-"`
	CurrentTrailingStop *float64    `json:"current_trailing_stop,omitempty"`
}

// IsLong reports whether the trade is long.
func (t *Trade) IsLong() bool {
	return t.Direction == DirectionLong
}

// IsTerminal reports whether the trade has reached a terminal state on
// either axis and must be excluded from tick evaluation.
func (t *Trade) IsTerminal() bool {
	return t.OrderStatus.IsTerminal() || t.TradeStatus.IsTerminal()
}

// StaticStopPrice returns the first fixed-price initial stop, if any.
func (t *Trade) StaticStopPrice() (float64, bool) {
	for _, r := range t.InitialStopRules {
		if r.Indicator == "" {
			return r.Value, true
		}
	}
	return 0, false
}

// WindowLookback returns the rolling-window length needed to serve every
// rule on the trade: the trade's own lookback or the largest lookback any
// indicator rule asks for, whichever is greater. ATR rules need one extra
// sample for the first price difference.
func (t *Trade) WindowLookback() int {
	longest := t.Lookback
	for _, rules := range [][]Rule{t.EntryRules, t.InitialStopRules, t.TrailingStopRules} {
		for _, r := range rules {
			if r.Indicator == "" {
				continue
			}
			n := r.Parameters.Lookback
			if r.Indicator == IndicatorATR {
				period := r.Parameters.ATRPeriod
				if period <= 0 {
					period = 14
				}
				if period+1 > n {
					n = period + 1
				}
			}
			if n > longest {
				longest = n
			}
		}
	}
	return longest
}

// TrailingRule returns the first trailing rule, if configured.
func (t *Trade) TrailingRule() (Rule, bool) {
	if len(t.TrailingStopRules) == 0 {
		return Rule{}, false
	}
	return t.TrailingStopRules[0], true
}

// Validate checks the shape invariants a trade must satisfy before it can
// participate in evaluation. It returns the full list of problems so a
// caller can surface them all at once.
func (t *Trade) Validate() []string {
	var errs []string

	if t.Symbol == "" {
		errs = append(errs, "missing symbol")
	}
	if t.Direction != DirectionLong && t.Direction != DirectionShort {
		errs = append(errs, "direction must be Long or Short")
	}
	if len(t.EntryRules) == 0 {
		errs = append(errs, "missing entry rules")
	}
	for _, r := range t.EntryRules {
		if r.Indicator == "" && !validCondition(r.Condition) {
			errs = append(errs, "entry rule has invalid condition "+r.Condition)
		}
	}
	if len(t.InitialStopRules) == 0 && len(t.TrailingStopRules) == 0 {
		errs = append(errs, "missing initial stop rule")
	}
	if t.Quantity <= 0 && (t.PortfolioValue <= 0 || t.RiskPct <= 0) {
		errs = append(errs, "missing quantity or sizing inputs (portfolio value, risk %)")
	}
	if t.OrderType == "" {
		errs = append(errs, "missing order type (e.g. market)")
	}
	if t.TimeInForce == "" {
		errs = append(errs, "missing time in force (e.g. GTC)")
	}
	for _, r := range t.TrailingStopRules {
		if r.Indicator == "" {
			errs = append(errs, "trailing stop rule is set but no indicator provided")
		}
	}
	if !t.OrderStatus.IsValid() {
		errs = append(errs, "unknown order status "+string(t.OrderStatus))
	}
	if !t.TradeStatus.IsValid() {
		errs = append(errs, "unknown trade status "+string(t.TradeStatus))
	}
	// Editing is mutually exclusive with any non-draft lifecycle state.
	if t.Editing {
		if t.OrderStatus != OrderStatusDraft {
			errs = append(errs, "editing trade must have Draft order status")
		}
		if t.TradeStatus != TradeStatusBlank {
			errs = append(errs, "editing trade must have blank trade status")
		}
	}

	return errs
}

func validCondition(c string) bool {
	switch c {
	case ConditionGTE, ConditionLTE, ConditionGT, ConditionLT:
		return true
	}
	return false
}
