// Package poses loads inspection target lists from plain-text files.
//
// Each non-empty, non-comment line describes one pose, whitespace
// separated, in one of two forms:
//
//	x y z qx qy qz qw      (position + orientation quaternion)
//	x y z roll pitch yaw   (position + Euler angles in degrees)
//
// Lines starting with '#' and blank lines are ignored; malformed lines
// are skipped with a notice.
package poses

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cjeanneret/SweepGo/internal/debug"
)

// Quaternion is an orientation in x, y, z, w order.
type Quaternion struct {
	X, Y, Z, W float64
}

// FromRPY builds a quaternion from roll/pitch/yaw (radians, ZYX order).
func FromRPY(roll, pitch, yaw float64) Quaternion {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)

	return Quaternion{
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}

// PanTilt extracts the pan (yaw) and tilt (pitch) angles, in radians,
// that a pan/tilt head needs to realize this orientation. Roll is not
// reproducible on a two-axis gimbal and is discarded.
func (q Quaternion) PanTilt() (pan, tilt float64) {
	pan = math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))

	sinTilt := 2 * (q.W*q.Y - q.Z*q.X)
	// Clamp against rounding at the poles before asin.
	sinTilt = math.Max(-1, math.Min(1, sinTilt))
	tilt = math.Asin(sinTilt)
	return pan, tilt
}

// Pose is one target: a position plus an orientation.
type Pose struct {
	X, Y, Z     float64
	Orientation Quaternion
}

const degToRad = math.Pi / 180.0

// Load reads a target list file and returns the poses in file order.
// An empty (or comment-only) file yields an empty, non-nil slice.
func Load(path string) ([]Pose, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer f.Close()

	poses := []Pose{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pose, ok := parseLine(line)
		if !ok {
			debug.Info("targets: ignoring invalid line %d: %q", lineNo, line)
			continue
		}
		poses = append(poses, pose)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return poses, nil
}

// parseLine parses one pose line: 7 fields for the quaternion form,
// 6 fields for the Euler-degrees form.
func parseLine(line string) (Pose, bool) {
	fields := strings.Fields(line)
	vals := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Pose{}, false
		}
		vals = append(vals, v)
	}

	switch len(vals) {
	case 7:
		return Pose{
			X: vals[0], Y: vals[1], Z: vals[2],
			Orientation: Quaternion{X: vals[3], Y: vals[4], Z: vals[5], W: vals[6]},
		}, true
	case 6:
		return Pose{
			X: vals[0], Y: vals[1], Z: vals[2],
			Orientation: FromRPY(vals[3]*degToRad, vals[4]*degToRad, vals[5]*degToRad),
		}, true
	default:
		return Pose{}, false
	}
}
