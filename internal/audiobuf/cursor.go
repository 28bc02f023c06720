package audiobuf

import "github.com/schollz/echocore/internal/ramp"

// Cursor is a stateful iterator over an Audio. It caches its current
// location and re-seeks lazily whenever the underlying Audio's version has
// moved on since the cursor last looked.
type Cursor struct {
	audio       *Audio
	seenVersion uint64
	frame       int
	reverse     bool
	autoExtend  bool
	fade        *ramp.Fade
	table       *ramp.Table
	level       [2]float32 // per-channel level, up to stereo fast path; extra channels use level[1]
}

// NewCursor creates a cursor over audio starting at frame 0.
func NewCursor(a *Audio) *Cursor {
	return &Cursor{audio: a, level: [2]float32{1, 1}}
}

func (c *Cursor) SetReverse(r bool)    { c.reverse = r }
func (c *Cursor) Reverse() bool        { return c.reverse }
func (c *Cursor) SetAutoExtend(v bool) { c.autoExtend = v }
func (c *Cursor) AutoExtend() bool     { return c.autoExtend }
func (c *Cursor) Frame() int           { return c.frame }
func (c *Cursor) SetFrame(f int)       { c.frame = f }
func (c *Cursor) SetLevel(l, r float32) {
	c.level[0] = l
	c.level[1] = r
}
func (c *Cursor) Fade() *ramp.Fade { return c.fade }

// AttachFade attaches a fade and the ramp table it reads its envelope from.
// Pass a nil fade to detach.
func (c *Cursor) AttachFade(f *ramp.Fade, table *ramp.Table) {
	c.fade = f
	c.table = table
}

// refresh re-locates the cursor if the audio's structure changed since the
// last access. Block-chunked storage means the cache is just the frame
// index; relocation is implicit in Audio.Locate, so refresh only needs to
// remember the version we last observed (kept for symmetry with a future
// cached-block optimization and to document the contract).
func (c *Cursor) refresh() {
	if c.seenVersion != c.audio.Version() {
		c.seenVersion = c.audio.Version()
	}
}

func levelFor(l [2]float32, channel int) float32 {
	if channel < len(l) {
		return l[channel]
	}
	return l[len(l)-1]
}

// Get reads the next nFrames into dst (Channels wide), applying level and
// the attached fade, mixing into dst unless replace is true. Reverse
// traversal flips per-frame direction but preserves channel order within a
// frame. Returns frames actually advanced.
func (c *Cursor) Get(dst []float32, nFrames int, replace bool) int {
	c.refresh()
	ch := c.audio.Channels
	tmp := make([]float32, ch)
	for f := 0; f < nFrames; f++ {
		cur := c.frame
		c.audio.ReadInto(cur, 1, tmp)
		if c.fade != nil && c.table != nil {
			if c.fade.Inc(cur, c.reverse) {
				mul := c.table.Single(1, c.fade.Processed()-1, c.fade.Up(), c.fade.BaseLevel())
				for ci := range tmp {
					tmp[ci] *= mul
				}
			}
		}
		base := f * ch
		for ci := 0; ci < ch; ci++ {
			v := tmp[ci] * levelFor(c.level, ci)
			if replace {
				dst[base+ci] = v
			} else {
				dst[base+ci] += v
			}
		}
		if c.reverse {
			c.frame--
		} else {
			c.frame++
		}
	}
	return nFrames
}

// Put writes nFrames from src into the underlying audio starting at the
// cursor's frame, applying the attached fade and the configured Op.
// Non-extending cursors silently stop (return fewer frames) once they would
// pass the audio's current end; auto-extending cursors keep going.
func (c *Cursor) Put(src []float32, nFrames int, op Op) int {
	c.refresh()
	ch := c.audio.Channels
	written := 0
	for f := 0; f < nFrames; f++ {
		cur := c.frame
		if !c.autoExtend && cur >= c.audio.Frames() {
			break
		}
		base := f * ch
		frame := make([]float32, ch)
		copy(frame, src[base:base+ch])
		if c.fade != nil && c.table != nil {
			if c.fade.Inc(cur, c.reverse) {
				mul := c.table.Single(1, c.fade.Processed()-1, c.fade.Up(), c.fade.BaseLevel())
				for ci := range frame {
					frame[ci] *= mul
				}
			}
		}
		c.audio.Put(cur, frame, 1, op)
		if c.reverse {
			c.frame--
		} else {
			c.frame++
		}
		written++
	}
	return written
}
