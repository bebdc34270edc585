// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	WatchRootNotFoundId Id = iota + 1
	WatchLimitReachedId
	ConfigLoadFailedId
	InvalidPackageId
	DeployDirUnavailableId
	ReloadHookFailedId
	AdminListenFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
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

// Render formats the issue for a terminal using the glamour style at
// stylePath ("dark", "light", "notty", or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	watchRootNotFoundIssue = &Issue{
		id: WatchRootNotFoundId,
		mdMsg: `
# The watch root does not exist!

modwatch watches a single directory tree for module packages, and that
directory must exist before the watcher starts.

## Things you can try:
- Create the directory:
~~~
$ mkdir -p /srv/modules
~~~

- Or point modwatch at another directory:
~~~
$ modwatch serve --root ./modules
~~~`,
	}

	watchLimitReachedIssue = &Issue{
		id: WatchLimitReachedId,
		mdMsg: `
# The operating system refused another watch!

Every directory under the watch root needs its own native watch, and the
per-user limit has been reached.

## Things you can try:
- Raise the inotify limit on Linux:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~

- Add ignore patterns for directories that never hold packages:
~~~cue
watch: ignore: ["**/node_modules/**", "**/.git/**"]
~~~`,
		extLinks: []HttpLink{"https://man7.org/linux/man-pages/man7/inotify.7.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# The configuration could not be loaded!

modwatch reads a CUE file and validates it against its schema before
applying environment overrides.

## Things you can try:
- Print the effective configuration:
~~~
$ modwatch config show
~~~

- Write a fresh file with the defaults:
~~~
$ modwatch config init
~~~

## Example:
~~~cue
watch: {
  root:     "/srv/modules"
  interval: 2
}
deploy: trigger: "copy"
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	invalidPackageIssue = &Issue{
		id: InvalidPackageId,
		mdMsg: `
# The module package is invalid!

A package is a zip archive with ` + "`module.cue`" + ` at its root. The manifest
names the module and its semantic version; the entrypoint and every model
it lists must be inside the archive.

## Things you can try:
- Inspect the package:
~~~
$ modwatch inspect billing.modpkg
~~~

- Rebuild it from the module directory:
~~~
$ modwatch pack ./billing
~~~`,
	}

	deployDirUnavailableIssue = &Issue{
		id: DeployDirUnavailableId,
		mdMsg: `
# The deploy directory is not usable!

Each deployment is unpacked into its own directory below the deploy
directory, so modwatch must be able to create and remove directories there.

## Things you can try:
- Check ownership and permissions of the directory
- Choose another location:
~~~
$ modwatch serve --deploy-dir /var/lib/modwatch
~~~`,
	}

	reloadHookFailedIssue = &Issue{
		id: ReloadHookFailedId,
		mdMsg: `
# The reload hook failed!

The hook runs in the embedded shell after every deployment change, with
` + "`MODWATCH_DEPLOYMENTS`" + ` listing the live modules. A failing hook never
undoes a deployment.

## Things you can try:
- Run the hook by hand with the same variable set
- Check the hook output in the modwatch log`,
	}

	adminListenFailedIssue = &Issue{
		id: AdminListenFailedId,
		mdMsg: `
# The admin endpoint could not listen!

## Things you can try:
- Pick a free address:
~~~
$ modwatch serve --metrics-addr 127.0.0.1:9091
~~~

- Disable the endpoint by setting an empty address:
~~~cue
metrics: addr: ""
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

modwatch needs to read the watch root and write the deploy directory.

## Things you can try:
- Check file and directory permissions
- Run modwatch as the user that owns the module directories`,
	}

	issues = map[Id]*Issue{
		watchRootNotFoundIssue.Id():    watchRootNotFoundIssue,
		watchLimitReachedIssue.Id():    watchLimitReachedIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		invalidPackageIssue.Id():       invalidPackageIssue,
		deployDirUnavailableIssue.Id(): deployDirUnavailableIssue,
		reloadHookFailedIssue.Id():     reloadHookFailedIssue,
		adminListenFailedIssue.Id():    adminListenFailedIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	out := maps.Values(issues)
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
