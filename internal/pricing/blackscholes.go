package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"optchain/internal/common"
)

// Greeks holds the standard first-order sensitivities of one option contract.
type Greeks struct {
	Delta decimal.Decimal
	Gamma decimal.Decimal
	Theta decimal.Decimal
	Vega  decimal.Decimal
	Rho   decimal.Decimal
}

// OptionDescriptor carries everything a pricing model needs about one
// contract. The order book index only builds descriptors and stores results;
// it never computes the formulas itself.
type OptionDescriptor struct {
	Underlying string
	Strike     decimal.Decimal
	Expiration time.Time
	Side       common.OptionSide
	ImpliedVol decimal.Decimal // annualized, e.g. 0.60
	Spot       decimal.Decimal
	Rate       decimal.Decimal // risk free, annualized
	At         time.Time       // valuation time; zero means time.Now()
}

// Model prices an option contract and computes its Greeks.
type Model interface {
	Price(desc OptionDescriptor) (decimal.Decimal, error)
	Greeks(desc OptionDescriptor) (Greeks, error)
}

// BlackScholes is the standard European closed-form model.
type BlackScholes struct{}

func NewBlackScholes() *BlackScholes {
	return &BlackScholes{}
}

// Price returns the theoretical value of the contract.
func (bs *BlackScholes) Price(desc OptionDescriptor) (decimal.Decimal, error) {
	in, err := validate(desc)
	if err != nil {
		return decimal.Zero, err
	}

	d1, d2 := in.d()
	var price float64
	if desc.Side == common.Call {
		price = in.spot*normCDF(d1) - in.strike*math.Exp(-in.rate*in.t)*normCDF(d2)
	} else {
		price = in.strike*math.Exp(-in.rate*in.t)*normCDF(-d2) - in.spot*normCDF(-d1)
	}
	return decimal.NewFromFloat(price), nil
}

// Greeks returns delta, gamma, theta, vega and rho for the contract.
func (bs *BlackScholes) Greeks(desc OptionDescriptor) (Greeks, error) {
	in, err := validate(desc)
	if err != nil {
		return Greeks{}, err
	}

	d1, d2 := in.d()
	pdfD1 := normPDF(d1)
	sqrtT := math.Sqrt(in.t)

	var delta, theta, rho float64
	if desc.Side == common.Call {
		delta = normCDF(d1)
		theta = -(in.spot*pdfD1*in.sigma)/(2*sqrtT) - in.rate*in.strike*math.Exp(-in.rate*in.t)*normCDF(d2)
		rho = in.strike * in.t * math.Exp(-in.rate*in.t) * normCDF(d2)
	} else {
		delta = normCDF(d1) - 1
		theta = -(in.spot*pdfD1*in.sigma)/(2*sqrtT) + in.rate*in.strike*math.Exp(-in.rate*in.t)*normCDF(-d2)
		rho = -in.strike * in.t * math.Exp(-in.rate*in.t) * normCDF(-d2)
	}

	return Greeks{
		Delta: decimal.NewFromFloat(delta),
		Gamma: decimal.NewFromFloat(pdfD1 / (in.spot * in.sigma * sqrtT)),
		Theta: decimal.NewFromFloat(theta),
		Vega:  decimal.NewFromFloat(in.spot * pdfD1 * sqrtT / 100),
		Rho:   decimal.NewFromFloat(rho),
	}, nil
}

// inputs is the descriptor lowered to float64 for the closed forms.
type inputs struct {
	spot, strike, sigma, rate, t float64
}

func (in inputs) d() (d1, d2 float64) {
	d1 = (math.Log(in.spot/in.strike) + (in.rate+0.5*in.sigma*in.sigma)*in.t) / (in.sigma * math.Sqrt(in.t))
	d2 = d1 - in.sigma*math.Sqrt(in.t)
	return d1, d2
}

func validate(desc OptionDescriptor) (inputs, error) {
	at := desc.At
	if at.IsZero() {
		at = time.Now()
	}
	t := desc.Expiration.Sub(at).Hours() / 24 / 365
	spot, _ := desc.Spot.Float64()
	strike, _ := desc.Strike.Float64()
	sigma, _ := desc.ImpliedVol.Float64()
	rate, _ := desc.Rate.Float64()

	switch {
	case spot <= 0:
		return inputs{}, fmt.Errorf("%w: spot must be positive", common.ErrPricingFailure)
	case strike <= 0:
		return inputs{}, fmt.Errorf("%w: strike must be positive", common.ErrPricingFailure)
	case sigma <= 0:
		return inputs{}, fmt.Errorf("%w: implied volatility must be positive", common.ErrPricingFailure)
	case t <= 0:
		return inputs{}, fmt.Errorf("%w: contract is expired", common.ErrPricingFailure)
	}
	return inputs{spot: spot, strike: strike, sigma: sigma, rate: rate, t: t}, nil
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
