package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

//ErrTrackerExited is returned when the tracker's output ends without the "EOF" marker
var ErrTrackerExited = errors.New("tracker output ended unexpectedly")

const (
	frameMarker = "Frame #:"
	eofMarker   = "EOF"
	fpsMarker   = "FPS: "
)

//trackerWaitDelay bounds how long Wait waits for the tracker's pipes after the process is killed
const trackerWaitDelay = 2 * time.Second

var detectionFields = []string{"ID", "Class", "Confidence", "Xmin", "Ymin", "Xmax", "Ymax"}

//TrackerConfig describes how to launch the detector/tracker process
type TrackerConfig struct {
	Command string   //interpreter, e.g. python3
	Script  string   //tracker script path
	Source  string   //camera index or video file, passed as --source
	Args    []string //extra arguments appended after --source
}

//RunTracker executes the tracker process, which runs the object detector and tracker on the video source and prints
//its results to standard output. Each completed frame is sent through framesC.
//Because this function is the only one who writes to framesC, it closes it before returning.
//Once reading stops, for any reason, the tracker process is killed so a child still writing cannot block Wait.
func RunTracker(ctx context.Context, cfg TrackerConfig, framesC chan<- Frame) error {
	defer close(framesC)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := append([]string{cfg.Script, "--source", cfg.Source}, cfg.Args...)
	cmd := exec.CommandContext(runCtx, cfg.Command, args...)
	cmd.WaitDelay = trackerWaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("RunTracker: could not get tracker's standard output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("RunTracker: could not start tracker: %w", err)
	}

	readErr := ReadFrames(ctx, stdout, framesC)
	cancel()

	if err := cmd.Wait(); err != nil && readErr != nil && ctx.Err() == nil {
		log.Printf("RunTracker: Tracker's process stopped after a read error, got '%v'", err)
	}

	return readErr
}

//ReadFrames parses the tracker's line protocol from r:
//
//	Frame #: 12
//	{"ID":7,"Class":25,"Confidence":0.91,"Xmin":10,"Ymin":180,"Xmax":60,"Ymax":220}
//	EOF
//
//A frame is sent once the next frame marker (or EOF) is read. Detections missing a field are skipped.
//Returns nil on EOF, ErrTrackerExited if r ends before it, or ctx's error when cancelled.
func ReadFrames(ctx context.Context, r io.Reader, framesC chan<- Frame) error {
	var current *Frame
	framesCounter := 0

	flush := func() error {
		if current == nil {
			return nil
		}
		select {
		case framesC <- *current:
			current = nil
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, frameMarker):
			if err := flush(); err != nil {
				return err
			}
			framesCounter++
			frameNum, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, frameMarker)))
			if err != nil {
				frameNum = framesCounter
			}
			current = newFrame(frameNum)

		case line == eofMarker: //finished all frames - send what is left
			return flush()

		case strings.Contains(line, fpsMarker): //this is a log print, skip it
			continue

		case strings.HasPrefix(line, "{"):
			if current == nil { //detection before any frame marker
				continue
			}
			if d, ok := parseDetection(line); ok {
				current.Detections = append(current.Detections, d)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ReadFrames: could not read tracker output: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	return ErrTrackerExited
}

//parseDetection extracts a Detection from one JSON line. ok is false if the line is not valid JSON
//or any field is missing or not a number
func parseDetection(line string) (Detection, bool) {
	if !gjson.Valid(line) {
		return Detection{}, false
	}

	results := gjson.GetMany(line, detectionFields...)
	for _, res := range results {
		if res.Type != gjson.Number {
			return Detection{}, false
		}
	}

	return Detection{
		TrackID:    int(results[0].Int()),
		Class:      int(results[1].Int()),
		Confidence: results[2].Float(),
		Xmin:       results[3].Float(),
		Ymin:       results[4].Float(),
		Xmax:       results[5].Float(),
		Ymax:       results[6].Float(),
	}, true
}
