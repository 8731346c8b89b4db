package drawlist

import (
	"fmt"

	"scene-renderer/gpu"
	"scene-renderer/state"
)

// Execute issues the commands of list in order through tr. Frame uniforms
// and frame textures are sent right after each program is first used; the
// tracker drops anything already bound.
func Execute(tr *state.Tracker, list *List) error {
	framed := make(map[gpu.Program]bool)
	for _, cmds := range [2][]Command{list.Opaque, list.Transparent} {
		for i := range cmds {
			if err := execute(tr, &list.Frame, &cmds[i], framed); err != nil {
				return err
			}
		}
	}
	return nil
}

func execute(tr *state.Tracker, frame *Frame, cmd *Command, framed map[gpu.Program]bool) error {
	p := cmd.Program
	tr.Apply(cmd.State)
	tr.UseProgram(p.Handle)
	if !framed[p.Handle] {
		framed[p.Handle] = true
		for _, b := range frame.Textures {
			tr.BindTexture(b.Unit, b.Texture)
		}
		if err := setUniforms(tr, cmd, frame.Uniforms); err != nil {
			return err
		}
	}
	for _, b := range cmd.Textures {
		tr.BindTexture(b.Unit, b.Texture)
	}
	if err := setUniforms(tr, cmd, cmd.Uniforms); err != nil {
		return err
	}
	tr.Draw(cmd.Mesh, cmd.Primitive, cmd.Count)
	return nil
}

func setUniforms(tr *state.Tracker, cmd *Command, uniforms []gpu.Uniform) error {
	for _, u := range uniforms {
		if err := tr.SetUniform(cmd.Program.Location(u.Name), u.Value); err != nil {
			return fmt.Errorf("draw %q: %w", cmd.Node.Name, err)
		}
	}
	return nil
}
