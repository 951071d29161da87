//Package capture reads properties of the camera or video file the tracker consumes
package capture

import (
	"fmt"
	"os"
	"strconv"

	"gocv.io/x/gocv"
)

//SourceFrameHeight opens the video source and returns its frame height in pixels.
//source is a video file path if such a file exists, otherwise a camera index
func SourceFrameHeight(source string) (int, error) {
	var capture *gocv.VideoCapture
	var err error
	if _, statErr := os.Stat(source); statErr == nil {
		capture, err = gocv.VideoCaptureFile(source)
	} else {
		deviceID, convErr := strconv.Atoi(source)
		if convErr != nil {
			return 0, fmt.Errorf("SourceFrameHeight: '%s' is neither a file nor a camera index", source)
		}
		capture, err = gocv.VideoCaptureDevice(deviceID)
	}
	if err != nil {
		return 0, fmt.Errorf("SourceFrameHeight: could not open '%s': %w", source, err)
	}
	defer capture.Close()

	if height := int(capture.Get(gocv.VideoCaptureFrameHeight)); height > 0 {
		return height, nil
	}

	//some backends do not report the size until a frame was read
	frameMat := gocv.NewMat()
	defer frameMat.Close()
	if ok := capture.Read(&frameMat); !ok || frameMat.Empty() {
		return 0, fmt.Errorf("SourceFrameHeight: could not read a frame from '%s'", source)
	}

	return frameMat.Rows(), nil
}
