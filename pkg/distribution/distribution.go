// Package distribution provides a closed set of scalar distribution kinds,
// each parameterized by an expected value and a scale (standard deviation),
// for randomizing field hyper-parameters. The Dirac kind always returns the
// expectation and stands in whenever no randomness is requested.
package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind enumerates the supported distribution families.
type Kind int

const (
	Dirac Kind = iota
	Normal
	LogNormal
	Uniform
	Gamma
)

// ParseKind maps a configuration name to a Kind. The empty string and
// "none" select Dirac.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "", "none", "dirac":
		return Dirac, nil
	case "normal":
		return Normal, nil
	case "lognormal":
		return LogNormal, nil
	case "uniform":
		return Uniform, nil
	case "gamma":
		return Gamma, nil
	}
	return Dirac, fmt.Errorf("distribution: unknown kind %q", name)
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case Dirac:
		return "dirac"
	case Normal:
		return "normal"
	case LogNormal:
		return "lognormal"
	case Uniform:
		return "uniform"
	case Gamma:
		return "gamma"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sampler draws values from one distribution kind with fixed moments.
type Sampler interface {
	Sample() float64
}

// NewSampler builds a sampler with the requested expectation and scale.
// A non-positive scale degenerates to Dirac regardless of kind. LogNormal
// and Gamma additionally require a positive expectation.
func NewSampler(kind Kind, exp, scale float64, src rand.Source) (Sampler, error) {
	if kind == Dirac || scale <= 0 {
		return dirac(exp), nil
	}
	switch kind {
	case Normal:
		return distSampler{distuv.Normal{Mu: exp, Sigma: scale, Src: src}}, nil
	case LogNormal:
		if exp <= 0 {
			return nil, fmt.Errorf("distribution: lognormal expectation must be positive, got %g", exp)
		}
		// Moment matching: E = e^(mu+sigma^2/2), Var = (e^(sigma^2)-1)E^2.
		sigma2 := math.Log(1 + (scale*scale)/(exp*exp))
		mu := math.Log(exp) - sigma2/2
		return distSampler{distuv.LogNormal{Mu: mu, Sigma: math.Sqrt(sigma2), Src: src}}, nil
	case Uniform:
		// Mean exp, standard deviation scale: half-width scale*sqrt(3).
		w := scale * math.Sqrt(3)
		return distSampler{distuv.Uniform{Min: exp - w, Max: exp + w, Src: src}}, nil
	case Gamma:
		if exp <= 0 {
			return nil, fmt.Errorf("distribution: gamma expectation must be positive, got %g", exp)
		}
		// Mean alpha/beta, variance alpha/beta^2.
		beta := exp / (scale * scale)
		alpha := exp * beta
		return distSampler{distuv.Gamma{Alpha: alpha, Beta: beta, Src: src}}, nil
	}
	return nil, fmt.Errorf("distribution: unknown kind %d", int(kind))
}

type dirac float64

func (d dirac) Sample() float64 { return float64(d) }

type distSampler struct {
	d interface{ Rand() float64 }
}

func (s distSampler) Sample() float64 { return s.d.Rand() }
