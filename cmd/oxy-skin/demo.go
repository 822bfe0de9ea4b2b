package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-skin/engine"
	"github.com/Carmen-Shannon/oxy-skin/engine/model"
	"github.com/Carmen-Shannon/oxy-skin/engine/texture"
	"github.com/chewxy/math32"
	"gopkg.in/yaml.v3"
)

const (
	columnHeight = 2
	columnRadius = 0.3
	columnRings  = 17
)

// materialOverride replaces fields of one material of the demo model. Nil fields keep the built-in value.
type materialOverride struct {
	Name      string      `yaml:"name"`
	Opacity   *float32    `yaml:"opacity"`
	Diffuse   *[3]float32 `yaml:"diffuse"`
	Ambient   *[3]float32 `yaml:"ambient"`
	Specular  *[3]float32 `yaml:"specular"`
	Shininess *float32    `yaml:"shininess"`
	EdgeColor *[4]float32 `yaml:"edge_color"`
	DrawEdge  *bool       `yaml:"draw_edge"`
	Toon      *int        `yaml:"toon"`
}

// overrides is the YAML material override file.
type overrides struct {
	Materials []materialOverride `yaml:"materials"`

	// Textures maps asset keys to image files, relative to the override file.
	Textures map[string]string `yaml:"textures"`

	// Toon maps toon table slots to asset keys.
	Toon map[int]string `yaml:"toon"`

	// Sway is the per-joint bend amplitude in radians.
	Sway *float32 `yaml:"sway"`
}

func loadOverrides(path string) (overrides, error) {
	var ov overrides
	if path == "" {
		return ov, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ov, fmt.Errorf("materials: %w", err)
	}
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return ov, fmt.Errorf("materials: parse %s: %w", path, err)
	}
	for key, p := range ov.Textures {
		if !filepath.IsAbs(p) {
			ov.Textures[key] = filepath.Join(filepath.Dir(path), p)
		}
	}
	return ov, nil
}

// apply rebuilds the demo model with the overridden materials and toon table.
func (ov overrides) apply(m model.Model) (model.Model, error) {
	mats := append([]model.MaterialDescriptor(nil), m.Materials()...)
	for _, o := range ov.Materials {
		i := -1
		for j := range mats {
			if mats[j].Name == o.Name {
				i = j
			}
		}
		if i < 0 {
			return nil, fmt.Errorf("materials: no material named %q", o.Name)
		}
		d := &mats[i]
		if o.Opacity != nil {
			d.Opacity = *o.Opacity
		}
		if o.Diffuse != nil {
			d.Diffuse = *o.Diffuse
		}
		if o.Ambient != nil {
			d.Ambient = *o.Ambient
		}
		if o.Specular != nil {
			d.Specular = *o.Specular
		}
		if o.Shininess != nil {
			d.Shininess = *o.Shininess
		}
		if o.EdgeColor != nil {
			d.EdgeColor = *o.EdgeColor
		}
		if o.DrawEdge != nil {
			d.DrawEdge = *o.DrawEdge
		}
		if o.Toon != nil {
			d.ToonIndex = *o.Toon
		}
	}

	opts := []model.ModelBuilderOption{
		model.WithName(m.Name()),
		model.WithGeometry(m.Geometry()),
		model.WithMaterials(mats),
		model.WithBoneCount(m.BoneCount()),
	}
	for i := range model.ToonTableSize {
		key := m.ToonTexture(i)
		if k, ok := ov.Toon[i]; ok {
			key = k
		}
		opts = append(opts, model.WithToonTexture(i, key))
	}
	out := model.NewModel(opts...)
	return out, out.Validate()
}

// demo is the model, textures and pose source shown by both commands.
type demo struct {
	model    model.Model
	textures texture.Set
	pose     engine.PoseFunc
	bounds   float32
}

func newDemo(o options) (demo, error) {
	ov, err := loadOverrides(o.materials)
	if err != nil {
		return demo{}, err
	}
	m, err := ov.apply(model.NewBendingColumn("column", o.segments, columnRings, o.bones, columnHeight, columnRadius))
	if err != nil {
		return demo{}, err
	}

	textures, err := builtinTextures()
	if err != nil {
		return demo{}, err
	}
	for key, t := range texture.LoadSet(ov.Textures) {
		textures[key] = t
	}

	sway := float32(0.25)
	if ov.Sway != nil {
		sway = *ov.Sway
	}
	bones := m.BoneCount()
	return demo{
		model:    m,
		textures: textures,
		pose: func(elapsed float32) model.BoneTable {
			return model.SwayPose(bones, columnHeight, sway*math32.Sin(2*elapsed))
		},
		bounds: columnHeight,
	}, nil
}

// builtinTextures generates the textures the demo materials reference.
func builtinTextures() (texture.Set, error) {
	const size = 64
	checker := image.NewNRGBA(image.Rect(0, 0, size, size))
	sphere := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			c := uint8(235)
			if (x/8+y/8)%2 == 1 {
				c = 200
			}
			checker.SetNRGBA(x, y, color.NRGBA{R: c, G: c, B: c, A: 255})

			dx, dy := float32(x)/size*2-1, float32(y)/size*2-1
			v := uint8(255 * max(0, 1-math32.Sqrt(dx*dx+dy*dy)))
			sphere.SetNRGBA(x, y, color.NRGBA{R: v / 2, G: v / 2, B: v, A: 255})
		}
	}

	set := texture.Set{"toon01": texture.ToonGradient(32, 3, [3]uint8{120, 130, 170})}
	var err error
	if set["body"], err = texture.FromImage(checker); err != nil {
		return nil, err
	}
	if set["sphere"], err = texture.FromImage(sphere); err != nil {
		return nil, err
	}
	return set, nil
}
