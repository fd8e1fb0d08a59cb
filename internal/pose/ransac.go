package pose

import (
	"fmt"
	"math/rand"

	"checkerpose/internal/camera"
	"checkerpose/pkg/geometry"

	"github.com/golang/geo/r3"
)

// subsetIterations bounds refinement of each minimal sample.
const subsetIterations = 10

// solveRANSAC fits random minimal subsets, keeps the pose with the most
// correspondences within the threshold and refits on those.
func solveRANSAC(obj []r3.Vector, img []geometry.Point2D, m camera.Model, opts Options) (Pose, error) {
	pf, err := fitPlane(obj)
	if err != nil {
		return Pose{}, err
	}
	sampleSize := 4
	if !pf.Planar {
		sampleSize = 6
	}
	n := len(obj)
	if n <= sampleSize {
		return solveIterative(obj, img, m, opts.MaxIterations)
	}

	iterations := opts.RansacIterations
	if iterations <= 0 {
		iterations = DefaultOptions().RansacIterations
	}
	threshold := opts.RansacThreshold
	if threshold <= 0 {
		threshold = DefaultOptions().RansacThreshold
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var bestInliers []int

	sObj := make([]r3.Vector, sampleSize)
	sImg := make([]geometry.Point2D, sampleSize)
	for iter := 0; iter < iterations; iter++ {
		indices := rng.Perm(n)[:sampleSize]
		for i, idx := range indices {
			sObj[i] = obj[idx]
			sImg[i] = img[idx]
		}

		candidate, err := solveIterative(sObj, sImg, m, subsetIterations)
		if err != nil {
			continue
		}

		inliers := inlierSet(candidate, obj, img, m, threshold)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			if len(inliers) == n {
				break
			}
		}
	}

	if len(bestInliers) < sampleSize {
		return Pose{}, fmt.Errorf("no consensus: %d inliers: %w", len(bestInliers), ErrDegenerate)
	}

	// Refit on the consensus set, then re-score against everything once.
	p, err := solveSubset(obj, img, m, bestInliers, opts.MaxIterations)
	if err != nil {
		return Pose{}, err
	}
	if final := inlierSet(p, obj, img, m, threshold); len(final) > len(bestInliers) {
		if refit, err := solveSubset(obj, img, m, final, opts.MaxIterations); err == nil {
			p = refit
		}
	}
	return p, nil
}

func solveSubset(obj []r3.Vector, img []geometry.Point2D, m camera.Model, idx []int, maxIter int) (Pose, error) {
	o := make([]r3.Vector, len(idx))
	q := make([]geometry.Point2D, len(idx))
	for i, k := range idx {
		o[i] = obj[k]
		q[i] = img[k]
	}
	return solveIterative(o, q, m, maxIter)
}

func inlierSet(p Pose, obj []r3.Vector, img []geometry.Point2D, m camera.Model, threshold float64) []int {
	proj := p.Project(m, obj)
	var inliers []int
	for i := range proj {
		if proj[i].IsFinite() && proj[i].Distance(img[i]) < threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}
