// Package process launches tasks as local operating system processes.
//
// On unix each task runs in its own process group and termination signals are
// delivered to the whole group, so dev servers that fork workers (npm, uvicorn
// with --reload) are stopped together with their children. Instances also
// implement runtime.GroupInstance, so children left behind by a task that
// already exited can be stopped as well. On Windows only the direct child is
// signalled and grandchildren may outlive the session.
package process
