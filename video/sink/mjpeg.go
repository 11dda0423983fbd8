package sink

import (
	"fmt"
	"image"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// MJPEG multi-streaming, based on implementation by saljam:
// https://github.com/saljam/mjpeg/blob/master/stream.go

const boundaryWord = "MJPEGBOUNDARY"
const headerf = "\r\n" +
	"--" + boundaryWord + "\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"Content-Length: %d\r\n" +
	"X-Timestamp: 0.000000\r\n" +
	"\r\n"

type MJPEGServer struct {
	m map[string]*MJPEGStream

	lock sync.Mutex
}

func NewMJPEGServer() *MJPEGServer {
	return &MJPEGServer{
		m: make(map[string]*MJPEGStream),
	}
}

// NewStream registers a named stream. Stream names are unique per server.
func (s *MJPEGServer) NewStream(name string) (*MJPEGStream, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.m[name]; ok {
		return nil, fmt.Errorf("a stream named %q already exists", name)
	}

	ms := &MJPEGStream{
		name:   name,
		m:      make(map[chan []byte]bool),
		frame:  make([]byte, len(headerf)),
		parent: s,
	}

	s.m[name] = ms
	return ms, nil
}

func (s *MJPEGServer) getStream(name string) *MJPEGStream {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.m[name]
}

// ServeHTTP implements http.Handler interface, serving MJPEG.
func (s *MJPEGServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := r.Form.Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	stream := s.getStream(name)
	if stream == nil {
		http.Error(w, "unknown stream", http.StatusNotFound)
		return
	}

	log.WithField("addr", r.RemoteAddr).Infof("MJPEG stream connected to %v", name)
	w.Header().Add("Content-Type", "multipart/x-mixed-replace;boundary="+boundaryWord)

	c := make(chan []byte)
	stream.lock.Lock()
	stream.m[c] = true
	stream.lock.Unlock()

	defer func() {
		stream.lock.Lock()
		delete(stream.m, c)
		stream.lock.Unlock()
		log.WithField("addr", r.RemoteAddr).Infof("MJPEG stream disconnected from %v", name)
	}()

	for {
		select {
		case b := <-c:
			if _, err := w.Write(b); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

type MJPEGStream struct {
	name  string
	m     map[chan []byte]bool
	frame []byte

	parent *MJPEGServer
	lock   sync.Mutex
}

func (s *MJPEGStream) empty() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.m) == 0
}

func (s *MJPEGStream) Put(input gocv.Mat) {
	if s.empty() {
		// Nobody is listening; don't bother encoding.
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, input)
	if err != nil {
		log.Errorf("Error encoding to JPG for MJPEG stream %v: %v", s.name, err)
		return
	}
	defer buf.Close()
	jpeg := buf.GetBytes()

	header := fmt.Sprintf(headerf, len(jpeg))
	if len(s.frame) < len(jpeg)+len(header) {
		s.frame = make([]byte, (len(jpeg)+len(header))*2)
	}

	copy(s.frame, header)
	copy(s.frame[len(header):], jpeg)

	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.m {
		select {
		case c <- s.frame[:(len(header) + len(jpeg))]:
		default:
			// Skip listeners not ready for next frame.
		}
	}
}

func (s *MJPEGStream) Close() {
	s.parent.lock.Lock()
	defer s.parent.lock.Unlock()
	delete(s.parent.m, s.name)
}

// MJPEGSurface presents an MJPEG stream as a fixed-size display Surface.
type MJPEGSurface struct {
	*MJPEGStream

	size   image.Point
	region image.Rectangle
	ctx    *Context
}

// NewSurface creates a stream named name with a canvas of the given size. Frame
// content is fit into region.
func (s *MJPEGServer) NewSurface(name string, size image.Point, region image.Rectangle) (*MJPEGSurface, error) {
	ms, err := s.NewStream(name)
	if err != nil {
		return nil, err
	}
	return &MJPEGSurface{
		MJPEGStream: ms,
		size:        size,
		region:      region,
		ctx:         NewContext("mjpeg:"+name, nil),
	}, nil
}

func (s *MJPEGSurface) Size() image.Point       { return s.size }
func (s *MJPEGSurface) Region() image.Rectangle { return s.region }
func (s *MJPEGSurface) Context() *Context       { return s.ctx }

// MJPEGStreamPool is a convenience wrapper that holds a number of streams that
// are created dynamically when referenced. Used for intermediate debug images.
type MJPEGStreamPool struct {
	server *MJPEGServer
	prefix string
	m      map[string]*MJPEGStream
	lock   sync.Mutex
}

func (s *MJPEGServer) NewStreamPool(prefix string) *MJPEGStreamPool {
	return &MJPEGStreamPool{
		server: s,
		prefix: prefix,
		m:      make(map[string]*MJPEGStream),
	}
}

func (p *MJPEGStreamPool) Put(name string, img gocv.Mat) {
	if p == nil {
		return
	}
	p.lock.Lock()
	stream, ok := p.m[name]
	if !ok {
		var err error
		if stream, err = p.server.NewStream(p.prefix + name); err != nil {
			p.lock.Unlock()
			log.Errorf("Failed to create debug stream: %v", err)
			return
		}
		p.m[name] = stream
	}
	p.lock.Unlock()
	stream.Put(img)
}

func (p *MJPEGStreamPool) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, s := range p.m {
		s.Close()
	}
	p.m = make(map[string]*MJPEGStream)
}
