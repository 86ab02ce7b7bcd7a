// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	CliUnavailableId Id = iota + 1
	NoWorkspaceId
	InstallFailedId
	ShellHookFailedId
	PackFailedId
	UnpackFailedId
	ConfigLoadFailedId
	TaskNotFoundId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, every issue type is documented upstream
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue page as styled terminal output. stylePath is a
// glamour style name ("dark", "light", "notty") or a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("\n- <" + string(link) + ">")
		}
		for _, link := range i.extLinks {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	cliUnavailableIssue = &Issue{
		id: CliUnavailableId,
		mdMsg: `
# pixi was not found

pixienv drives the ` + "`pixi`" + ` executable and could not locate it.

## Search order
1. ` + "`pixi_path`" + ` from your config file
2. ` + "`$PIXI_HOME/bin/pixi`" + ` (defaults to ` + "`~/.pixi/bin/pixi`" + `)
3. ` + "`pixi`" + ` on your ` + "`PATH`" + `

## Things you can try
- Install pixi:
~~~
$ curl -fsSL https://pixi.sh/install.sh | bash
~~~
- Or point pixienv at an existing binary:
~~~cue
pixi_path: "/opt/pixi/bin/pixi"
~~~`,
		docLinks: []HttpLink{"https://pixi.sh/latest/#installation"},
	}

	noWorkspaceIssue = &Issue{
		id: NoWorkspaceId,
		mdMsg: `
# No pixi workspace

The working directory has no ` + "`pixi.toml`" + `.

## Things you can try
- Create one and activate it:
~~~
$ pixienv create
~~~
- Or run pixienv from the workspace root, or pass ` + "`--workspace`" + `.`,
		docLinks: []HttpLink{"https://pixi.sh/latest/reference/pixi_manifest/"},
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# pixi install failed

The install terminal closed with a non-zero (or unknown) exit code, so the
environment was not activated. Your previous selection is kept.

## Things you can try
- Re-run the install to read the full solver output:
~~~
$ pixi install -e <environment>
~~~
- Check that every dependency is available for your platform in ` + "`pixi.toml`" + `.
- Remove ` + "`pixi.lock`" + ` if it was produced by an incompatible pixi version.`,
		docLinks: []HttpLink{"https://pixi.sh/latest/reference/cli/pixi/install/"},
	}

	shellHookFailedIssue = &Issue{
		id: ShellHookFailedId,
		mdMsg: `
# pixi shell-hook failed

The command printing the environment's activation variables failed, so
nothing was injected.

## Things you can try
- Run it yourself and read the error:
~~~
$ pixi shell-hook --shell bash -e <environment>
~~~
- Make sure the environment was installed (` + "`pixienv activate`" + ` installs it).`,
		docLinks: []HttpLink{"https://pixi.sh/latest/reference/cli/pixi/shell-hook/"},
	}

	packFailedIssue = &Issue{
		id: PackFailedId,
		mdMsg: `
# Packing the environment failed

` + "`pixi-pack`" + ` could not be installed or exited with a non-zero code.

## Things you can try
- Install the packer yourself:
~~~
$ pixi add pixi-pack
~~~
- Check that the selected platform is listed in ` + "`platforms`" + ` in ` + "`pixi.toml`" + `.`,
		docLinks: []HttpLink{"https://pixi.sh/latest/deployment/pixi_pack/"},
	}

	unpackFailedIssue = &Issue{
		id: UnpackFailedId,
		mdMsg: `
# Unpacking the environment failed

The archive could not be unpacked, or its activation script could not be read.

## Things you can try
- Verify the archive was produced by ` + "`pixi-pack`" + ` for this platform.
- Self-extracting archives (` + "`.sh`" + `) must be executable.
- Remove ` + "`.pixi/offline`" + ` and try again.`,
		docLinks: []HttpLink{"https://pixi.sh/latest/deployment/pixi_pack/"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

pixienv reads ` + "`config.cue`" + ` from its config directory and from
` + "`.pixienv/config.cue`" + ` in the workspace.

## Things you can try
- Print the files that were read:
~~~
$ pixienv config path
~~~
- Write a documented default:
~~~
$ pixienv config init
~~~

## Example
~~~cue
auto_reload: false
ignored_environments: ["^lint$"]
offline_environment_name: "env"
~~~`,
		docLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	taskNotFoundIssue = &Issue{
		id: TaskNotFoundId,
		mdMsg: `
# Task not found

No task with that name was discovered. Tasks starting with ` + "`_`" + ` are
hidden, and environments matching ` + "`ignored_environments`" + ` contribute none.

## Things you can try
- List the tasks pixienv can run:
~~~
$ pixienv tasks list
~~~
- Tasks defined in several environments are named ` + "`task (environment)`" + `.`,
		docLinks: []HttpLink{"https://pixi.sh/latest/workspace/advanced_tasks/"},
	}

	issues = map[Id]*Issue{
		cliUnavailableIssue.Id():   cliUnavailableIssue,
		noWorkspaceIssue.Id():      noWorkspaceIssue,
		installFailedIssue.Id():    installFailedIssue,
		shellHookFailedIssue.Id():  shellHookFailedIssue,
		packFailedIssue.Id():       packFailedIssue,
		unpackFailedIssue.Id():     unpackFailedIssue,
		configLoadFailedIssue.Id(): configLoadFailedIssue,
		taskNotFoundIssue.Id():     taskNotFoundIssue,
	}
)

// Values returns every catalog issue ordered by Id.
func Values() []*Issue {
	values := slices.Collect(maps.Values(issues))
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id - b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
